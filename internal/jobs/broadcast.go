package jobs

import "sync"

// Broadcaster fans job progress updates out to subscribers. It is
// transport-neutral; the API layer bridges it onto websockets. A slow
// subscriber drops intermediate updates rather than blocking the job.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[chan Update]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[chan Update]struct{})}
}

const subscriberBuffer = 16

// Subscribe returns a channel of updates for one job plus a cancel
// function. Cancel closes the channel.
func (b *Broadcaster) Subscribe(jobID string) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan Update]struct{})
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set, ok := b.subs[jobID]; ok {
			if _, subscribed := set[ch]; subscribed {
				delete(set, ch)
				close(ch)
				if len(set) == 0 {
					delete(b.subs, jobID)
				}
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers one update to every subscriber of the job. Full
// subscriber buffers are skipped; a later update supersedes the missed
// one anyway.
func (b *Broadcaster) Publish(update Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[update.JobID] {
		select {
		case ch <- update:
		default:
		}
	}
}
