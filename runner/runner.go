// Package runner wires the handler chain together and runs one client
// session: transport in, capture, command interpretation, dialogue, speech,
// transport out, with a screen coordinating everything above the chain.
package runner

import (
	"context"

	"pocketsocrates/core"
)

// TopHandler receives packets addressed above the handler chain.
type TopHandler interface {
	HandleTop(packet *core.EventPacket)
}

type Runner struct {
	Handlers []core.IHandler

	top    TopHandler
	logger *core.Logger

	ctx            context.Context
	cancel         context.CancelFunc
	topOutputChan  chan *core.EventPacket
	lastOutputChan chan *core.EventPacket
}

func NewRunner(handlers []core.IHandler, top TopHandler, logger *core.Logger) *Runner {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Runner{
		Handlers: handlers,
		top:      top,
		logger:   logger,
	}
}

func (r *Runner) Start(parent context.Context) error {
	if len(r.Handlers) == 0 {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(parent)
	r.topOutputChan = make(chan *core.EventPacket, 100)
	r.lastOutputChan = make(chan *core.EventPacket, 100)

	inputChans := make([]chan *core.EventPacket, len(r.Handlers))
	for i := range inputChans {
		inputChans[i] = make(chan *core.EventPacket, 100)
	}

	for i, handler := range r.Handlers {
		var outputNextChan chan<- *core.EventPacket
		if i < len(r.Handlers)-1 {
			outputNextChan = inputChans[i+1]
		} else {
			outputNextChan = r.lastOutputChan
		}

		if err := handler.Initialize(inputChans[i], outputNextChan, r.topOutputChan, r.ctx); err != nil {
			r.cancel()
			return err
		}
		if err := handler.Start(); err != nil {
			r.cancel()
			return err
		}
	}

	go r.listenToOutputs()
	return nil
}

// Done exposes the session lifetime.
func (r *Runner) Done() <-chan struct{} {
	return r.ctx.Done()
}

func (r *Runner) listenToOutputs() {
	for {
		select {
		case packet := <-r.lastOutputChan:
			// everything reaching past the output handler went unclaimed
			r.logger.Debugf("unconsumed packet past output handler: %s", packet.Event.GetId())
		case packet := <-r.topOutputChan:
			if r.top != nil {
				r.top.HandleTop(packet)
			}
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}

	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (r *Runner) Reset() error {
	var errs []error
	for _, handler := range r.Handlers {
		if err := handler.Reset(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
