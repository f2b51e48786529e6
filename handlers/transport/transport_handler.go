// Package transport bridges the wire protocol and the session pipeline.
// The input handler decodes client envelopes into events; the output
// handler serializes pipeline output events back onto the wire.
package transport

import (
	"pocketsocrates/core"
	"pocketsocrates/events/dialogue"
	"pocketsocrates/events/stt"
	"pocketsocrates/events/transport"
	"pocketsocrates/events/tts"
	"pocketsocrates/protocol"
)

// Service is a connected client transport, one per screen.
type Service interface {
	core.IService
	Send(data []byte) error
	StartReceiving(dataChan chan<- []byte, errChan chan<- error)
}

// HandlerWrapper holds the shared transport service for the input and
// output ends of the pipeline.
type HandlerWrapper struct {
	service Service
	logger  *core.Logger
}

func NewHandlerWrapper(service Service, logger *core.Logger) *HandlerWrapper {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &HandlerWrapper{service: service, logger: logger}
}

func (w *HandlerWrapper) InputHandler() *InputHandler {
	h := &InputHandler{
		BaseHandler: *core.NewBaseHandler(w.service, nil, w.logger),
		wrapper:     w,
	}
	// packets arriving on the input channel are relayed unchanged
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (w *HandlerWrapper) OutputHandler() *OutputHandler {
	h := &OutputHandler{
		BaseHandler: *core.NewBaseHandler(w.service, nil, w.logger),
		wrapper:     w,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

// InputHandler turns incoming client messages into pipeline events.
type InputHandler struct {
	core.BaseHandler
	wrapper *HandlerWrapper
}

// HandleEvent relays packets arriving on the input channel unchanged.
func (h *InputHandler) HandleEvent(packet *core.EventPacket) error {
	h.SendPacket(packet)
	return nil
}

func (h *InputHandler) Start() error {
	go h.receiveLoop()
	return h.BaseHandler.Start()
}

func (h *InputHandler) receiveLoop() {
	dataChan := make(chan []byte, 16)
	errChan := make(chan error, 1)
	go h.Service.(Service).StartReceiving(dataChan, errChan)

	for {
		select {
		case data := <-dataChan:
			h.dispatch(data)
		case err := <-errChan:
			h.HandleError(err)
			return
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *InputHandler) dispatch(data []byte) {
	msgType, raw, err := protocol.Unmarshal(data)
	if err != nil {
		h.Logger.Warnf("dropping malformed client message: %v", err)
		return
	}

	switch msgType {
	case protocol.MsgTextInput:
		payload, err := protocol.UnmarshalPayload[protocol.TextInputPayload](raw)
		if err != nil {
			h.Logger.Warnf("dropping malformed %s payload: %v", msgType, err)
			return
		}
		h.send(&transport.TextInputEvent{Text: payload.Text})

	case protocol.MsgRecordStart:
		h.send(&transport.RecordStartEvent{})

	case protocol.MsgRecordChunk:
		payload, err := protocol.UnmarshalPayload[protocol.RecordChunkPayload](raw)
		if err != nil {
			h.Logger.Warnf("dropping malformed %s payload: %v", msgType, err)
			return
		}
		h.send(&transport.RecordChunkEvent{Chunk: core.AudioChunk{
			Data:       payload.Data,
			Encoding:   core.AudioEncoding(payload.Encoding),
			SampleRate: payload.SampleRate,
			Channels:   payload.Channels,
		}})

	case protocol.MsgRecordStop:
		h.send(&transport.RecordStopEvent{})

	case protocol.MsgPlaybackFinished:
		h.send(&transport.PlaybackFinishedEvent{})

	default:
		// session CRUD, selection and instruction messages belong to
		// the screen, not the pipeline
		h.SendPacket(core.NewEventPacket(
			&transport.ControlEvent{Type: string(msgType), Payload: raw},
			core.DestinationTop,
			"TransportInputHandler",
		))
	}
}

func (h *InputHandler) send(event core.IEvent) {
	h.SendPacket(core.NewEventPacket(event, core.DestinationNext, "TransportInputHandler"))
}

// OutputHandler serializes pipeline output events into wire messages.
type OutputHandler struct {
	core.BaseHandler
	wrapper *HandlerWrapper
}

func (h *OutputHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *dialogue.MessageAddedEvent:
		return h.write(protocol.MsgMessage, protocol.MessagePayload{
			ChatID: event.SessionID,
			Message: protocol.WireMessage{
				ID:        event.Message.ID,
				Role:      event.Message.Role,
				Content:   event.Message.Content,
				CreatedAt: event.Message.CreatedAt,
			},
		})

	case *stt.TranscriptReadyEvent:
		return h.write(protocol.MsgTranscript, protocol.TranscriptPayload{Text: event.Text})

	case *core.Notice:
		return h.write(protocol.MsgNotice, protocol.NoticePayload{Text: event.Text})

	case *tts.SpeechReadyEvent:
		return h.write(protocol.MsgSpeech, protocol.SpeechPayload{
			Text:       event.Text,
			Audio:      event.Audio.Data,
			Encoding:   string(event.Audio.Encoding),
			SampleRate: event.Audio.SampleRate,
		})

	case *dialogue.TakeawaysReadyEvent:
		return h.write(protocol.MsgTakeaways, protocol.TakeawaysPayload{
			Points:     event.Result.Points,
			Reflection: event.Result.Reflection,
		})

	default:
		h.SendPacket(packet)
		return nil
	}
}

func (h *OutputHandler) write(msgType protocol.MessageType, payload interface{}) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	if err := h.Service.(Service).Send(data); err != nil {
		h.HandleError(err)
		return err
	}
	return nil
}
