package core

import (
	"context"
	"errors"
	"fmt"
)

// IService is implemented by external backends a handler talks to
// (generation, transcription, synthesis, transport).
type IService interface {
	Init(ctx context.Context) error
	Cleanup() error
	Reset() error
	Name() string
}

// IHandler is one stage of the session pipeline.
type IHandler interface {
	Initialize(
		inputChan <-chan *EventPacket,
		outputNextChan chan<- *EventPacket,
		outputTopChan chan<- *EventPacket,
		ctx context.Context,
	) error
	Start() error // Starts the handler's event loop.
	HandleEvent(packet *EventPacket) error

	Cleanup() error
	Reset() error
}

// BaseHandler carries the channel plumbing and service failover shared by
// all handlers. Concrete handlers embed it, register their HandleEvent via
// SetHandleEventFunc and call its Start.
type BaseHandler struct {
	Service        IService
	BackupServices []IService
	Ctx            context.Context
	Logger         *Logger

	InputChan             <-chan *EventPacket
	outputNextChan        chan<- *EventPacket
	outputTopChan         chan<- *EventPacket
	FatalServiceErrorChan chan error

	handleEventFunc func(packet *EventPacket) error
}

func NewBaseHandler(service IService, backupServices []IService, logger *Logger) *BaseHandler {
	if logger == nil {
		logger = GetLogger()
	}
	return &BaseHandler{
		Service:        service,
		BackupServices: backupServices,
		Logger:         logger,
	}
}

func (h *BaseHandler) Initialize(
	inputChan <-chan *EventPacket,
	outputNextChan chan<- *EventPacket,
	outputTopChan chan<- *EventPacket,
	ctx context.Context,
) error {
	h.InputChan = inputChan
	h.outputNextChan = outputNextChan
	h.outputTopChan = outputTopChan
	h.FatalServiceErrorChan = make(chan error, 1)
	h.Ctx = ctx
	go h.fatalErrorHandlerLoop()
	if h.Service == nil {
		return nil
	}
	return h.Service.Init(ctx)
}

// SetHandleEventFunc registers the embedding handler's event callback,
// invoked for every packet arriving on the input channel.
func (h *BaseHandler) SetHandleEventFunc(fn func(packet *EventPacket) error) {
	h.handleEventFunc = fn
}

// Start runs the input loop. Handlers with their own service channels
// override Start, spawn their loops and call this last.
func (h *BaseHandler) Start() error {
	go h.inputLoop()
	return nil
}

func (h *BaseHandler) inputLoop() {
	for {
		select {
		case packet, ok := <-h.InputChan:
			if !ok {
				return
			}
			if h.handleEventFunc == nil {
				continue
			}
			if err := h.handleEventFunc(packet); err != nil {
				h.Logger.Errorf("handler error on %s: %v", packet.Event.GetId(), err)
			}
		case <-h.Ctx.Done():
			return
		}
	}
}

func (h *BaseHandler) Cleanup() error {
	if h.Service == nil {
		return nil
	}
	return h.Service.Cleanup()
}

func (h *BaseHandler) Reset() error {
	if h.Service == nil {
		return nil
	}
	return h.Service.Reset()
}

// SwitchToBackupService swaps the failed primary for the next backup and
// initializes it.
func (h *BaseHandler) SwitchToBackupService() error {
	if len(h.BackupServices) == 0 {
		return errors.New("no backup services available")
	}
	old := h.Service
	h.Service = h.BackupServices[0]
	if err := h.Service.Init(h.Ctx); err != nil {
		return fmt.Errorf("init backup service %s: %w", h.Service.Name(), err)
	}
	h.BackupServices = h.BackupServices[1:]
	if old != nil {
		if err := old.Cleanup(); err != nil {
			h.Logger.Warnf("cleanup of failed service %s: %v", old.Name(), err)
		}
	}
	h.Logger.Infof("switched to backup service %s", h.Service.Name())
	return nil
}

// SendPacket routes a packet to the next handler or the screen channel
// according to its destination.
func (h *BaseHandler) SendPacket(packet *EventPacket) {
	switch packet.Destination {
	case DestinationTop:
		if h.outputTopChan != nil {
			h.outputTopChan <- packet
		}
	default:
		if h.outputNextChan != nil {
			h.outputNextChan <- packet
		}
	}
}

// HandleError reports a fatal service error, triggering failover.
func (h *BaseHandler) HandleError(err error) {
	select {
	case h.FatalServiceErrorChan <- err:
	default:
	}
}

func (h *BaseHandler) fatalErrorHandlerLoop() {
	for {
		select {
		case err := <-h.FatalServiceErrorChan:
			h.Logger.Errorf("fatal service error: %v", err)
			if switchErr := h.SwitchToBackupService(); switchErr != nil {
				h.SendPacket(NewEventPacket(
					&CriticalError{Err: err},
					DestinationTop,
					"BaseHandler",
				))
				return
			}
		case <-h.Ctx.Done():
			return
		}
	}
}
