package cmd

import (
	"fmt"

	"github.com/marcus/shopsync/internal/apiclient"
	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/connectivity"
	"github.com/marcus/shopsync/internal/dispatch"
	"github.com/marcus/shopsync/internal/output"
	"github.com/marcus/shopsync/internal/push"
	"github.com/marcus/shopsync/internal/queue"
	"github.com/marcus/shopsync/internal/replay"
)

// stack is the wired runtime shared by commands: backend client, connectivity
// prober, dispatcher, replay engine and push manager.
type stack struct {
	Queue      *queue.DB // nil when the local store is unavailable
	Client     *apiclient.Client
	Prober     *connectivity.Prober
	Dispatcher *dispatch.Dispatcher
	Engine     *replay.Engine
	Trigger    *replay.Trigger
	Push       *push.Manager
}

// newStack wires up the runtime. A queue that fails to open degrades the
// stack to online-only dispatch with a visible warning rather than failing
// the whole command.
func newStack() (*stack, error) {
	deviceID, err := config.GetDeviceID()
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}

	client := apiclient.New(config.GetServerURL(), deviceID)
	prober := connectivity.NewProber(client)

	q, err := queue.Open(getBaseDir())
	if err != nil {
		output.Warning("local queue unavailable: %v", err)
		q = nil
	}

	engine := replay.NewEngine(q, client, config.GetMaxRetries(), config.GetBackoffBase(), config.GetBatchSize())
	trigger := &replay.Trigger{Engine: engine, Online: prober.Online}

	d := dispatch.New(q, client, prober.Online)
	d.Registrar = trigger
	d.OnSendFailure = prober.Invalidate

	mgr := push.NewManager(client, q, trigger, d)
	engine.Notifier = mgr

	return &stack{
		Queue:      q,
		Client:     client,
		Prober:     prober,
		Dispatcher: d,
		Engine:     engine,
		Trigger:    trigger,
		Push:       mgr,
	}, nil
}

// requireQueue fails the command when the local store did not open.
func (s *stack) requireQueue() error {
	if s.Queue == nil {
		return fmt.Errorf("local queue unavailable")
	}
	return nil
}

func (s *stack) Close() {
	if s.Queue != nil {
		s.Queue.Close()
	}
}

// reportResult prints the dispatch outcome. A dropped action is an error:
// it was neither delivered nor queued.
func reportResult(r dispatch.Result) error {
	fmt.Println(output.FormatResult(r))
	if r == dispatch.ResultDropped {
		return fmt.Errorf("action dropped")
	}
	return nil
}
