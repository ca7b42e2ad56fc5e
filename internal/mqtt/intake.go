package mqtt

import (
	"context"
	"encoding/json"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AdventureEngine/internal/events"
	"github.com/AaronLay10/AdventureEngine/internal/scenes"
)

// TopicCommands carries player commands from the presentation layer.
const TopicCommands = "commands"

const intakeQueueSize = 64

// CommandExecutor runs a scene command. *navigator.Navigator satisfies it.
type CommandExecutor interface {
	ExecuteCommand(ctx context.Context, cmd *scenes.Command) error
}

// CommandIntake subscribes to the command topic and hands each decoded
// command to the executor.
//
// Commands run one at a time, in arrival order, on a worker goroutine. The
// paho router only decodes and enqueues, so it stays free to deliver other
// messages (fade acknowledgements in particular) while a command blocks.
type CommandIntake struct {
	sub  Subscriber
	exec CommandExecutor
	cfg  Config

	queue chan *scenes.Command
	once  sync.Once
	ctx   context.Context
}

func NewCommandIntake(sub Subscriber, exec CommandExecutor, cfg Config) *CommandIntake {
	return &CommandIntake{
		sub:   sub,
		exec:  exec,
		cfg:   cfg,
		queue: make(chan *scenes.Command, intakeQueueSize),
	}
}

// Start subscribes to the command topic. It is safe to call again after a
// reconnect; the worker is started once and runs until the first ctx is done.
func (in *CommandIntake) Start(ctx context.Context) error {
	in.once.Do(func() {
		in.ctx = ctx
		go in.run()
	})
	return in.sub.Subscribe(in.cfg.Topic(TopicCommands), in.onMessage)
}

func (in *CommandIntake) run() {
	for {
		select {
		case <-in.ctx.Done():
			return
		case cmd := <-in.queue:
			if in.ctx.Err() != nil {
				return
			}
			// Handler errors are already logged by the executor.
			_ = in.exec.ExecuteCommand(in.ctx, cmd)
		}
	}
}

func (in *CommandIntake) onMessage(_ paho.Client, msg paho.Message) {
	in.enqueue(msg.Topic(), msg.Payload())
}

// enqueue decodes one payload and queues it for the worker. It never waits
// on the executor.
func (in *CommandIntake) enqueue(topic string, payload []byte) {
	if in.ctx.Err() != nil {
		return
	}

	var cmd scenes.Command
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Type == "" {
		msg := "command payload missing type"
		if err != nil {
			msg = err.Error()
		}
		events.Emit("warning", "command.malformed", msg, map[string]interface{}{
			"topic":   topic,
			"payload": string(payload),
		})
		return
	}

	select {
	case in.queue <- &cmd:
	default:
		events.Emit("error", "command.error", "command queue full", map[string]interface{}{
			"type":      string(cmd.Type),
			"parameter": cmd.Parameter,
		})
	}
}
