// Package chatlog runs chat persistence off the signaling path. Messages of
// one room always land on the same shard, so the log append and the
// broadcast that follows it keep room order.
package chatlog

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/gibridargos/live-suhbat/internal/core"
	"github.com/gibridargos/live-suhbat/internal/domain"
	"github.com/rs/zerolog/log"
)

const defaultAppendTimeout = 5 * time.Second

type job struct {
	msg     domain.ChatMessage
	deliver func(domain.ChatMessage)
}

type Pipeline struct {
	sink          core.ChatLog
	shards        []chan job
	appendTimeout time.Duration
	wg            sync.WaitGroup
}

func NewPipeline(sink core.ChatLog, workers, queue int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 1
	}
	p := &Pipeline{
		sink:          sink,
		shards:        make([]chan job, workers),
		appendTimeout: defaultAppendTimeout,
	}
	for i := range p.shards {
		p.shards[i] = make(chan job, queue)
	}
	return p
}

// Start launches one worker per shard. Workers stop when ctx is done.
func (p *Pipeline) Start(ctx context.Context) {
	for i, ch := range p.shards {
		p.wg.Add(1)
		go p.worker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Submit queues msg; deliver runs after the append attempt. It never blocks.
func (p *Pipeline) Submit(msg domain.ChatMessage, deliver func(domain.ChatMessage)) error {
	select {
	case p.shards[p.shardFor(msg.Room)] <- job{msg: msg, deliver: deliver}:
		return nil
	default:
		return domain.NewOpError("chat", domain.ErrOverloaded, "chat queue full")
	}
}

func (p *Pipeline) shardFor(room domain.RoomID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(room))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *Pipeline) worker(ctx context.Context, shard int, jobs <-chan job) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.chatlog").Int("shard", shard).Msg("worker stopped")
			return
		case j := <-jobs:
			p.handle(ctx, j)
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, j job) {
	if p.sink != nil {
		actx, cancel := context.WithTimeout(ctx, p.appendTimeout)
		err := p.sink.Append(actx, j.msg)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("module", "app.chatlog").Str("room", string(j.msg.Room)).Msg("append failed")
		}
	}
	if j.deliver != nil {
		j.deliver(j.msg)
	}
}
