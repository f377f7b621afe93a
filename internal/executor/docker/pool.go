package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// poolLabel marks every sandbox container so stray ones can be found with
// `docker ps --filter label=snippethub.pool`.
const poolLabel = "snippethub.pool"

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Pool keeps up to Config.PoolSize idle containers of one runtime image.
// A container is handed out by Acquire exactly once; the caller hands it
// back to Discard when the run is over.
type Pool struct {
	cli    *client.Client
	config Config
	image  string
	logger *slog.Logger

	ready  chan string
	refill chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates a pool for img. Nothing is started until Start.
func NewPool(cli *client.Client, cfg Config, img string, logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cli:    cli,
		config: cfg,
		image:  img,
		logger: logger,
		ready:  make(chan string, cfg.PoolSize),
		refill: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the filler goroutine. Calling it twice is a no-op.
func (p *Pool) Start() {
	p.once.Do(func() {
		p.logger.Info("starting sandbox pool",
			slog.String("image", p.image),
			slog.Int("size", p.config.PoolSize),
		)
		p.wg.Add(1)
		go p.fill()
	})
}

// Stop ends the filler and removes every idle container.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()

	n := 0
	for {
		select {
		case id := <-p.ready:
			p.Discard(id)
			n++
		default:
			p.logger.Info("sandbox pool stopped",
				slog.String("image", p.image),
				slog.Int("removed", n),
			)
			return
		}
	}
}

// Acquire blocks until an idle container is ready or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.ready:
		p.wake()
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.ctx.Done():
		return "", fmt.Errorf("sandbox pool for %s is stopped", p.image)
	}
}

// Idle reports how many containers are waiting to be acquired.
func (p *Pool) Idle() int { return len(p.ready) }

// Discard force-removes a container. Errors are logged, not returned.
func (p *Pool) Discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("failed to remove sandbox container",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) wake() {
	select {
	case p.refill <- struct{}{}:
	default:
	}
}

// fill tops the pool up, then sleeps until Acquire takes a container.
// Failed creates back off exponentially up to maxBackoff.
func (p *Pool) fill() {
	defer p.wg.Done()

	backoff := minBackoff
	for {
		for len(p.ready) < cap(p.ready) {
			id, err := p.create()
			if err != nil {
				if p.ctx.Err() != nil {
					return
				}
				p.logger.Error("failed to create sandbox container",
					slog.String("image", p.image),
					slog.Duration("retryIn", backoff),
					slog.String("error", err.Error()),
				)
				select {
				case <-time.After(backoff):
				case <-p.ctx.Done():
					return
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			backoff = minBackoff

			select {
			case p.ready <- id:
			case <-p.ctx.Done():
				p.Discard(id)
				return
			}
		}

		select {
		case <-p.refill:
		case <-p.ctx.Done():
			return
		}
	}
}

// create starts an idle container (`sleep infinity`) that code is later
// exec'd into. The sandbox has no network, a read-only root and a small
// writable /tmp.
func (p *Pool) create() (string, error) {
	ctx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,size=16m"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:  p.image,
		Cmd:    []string{"sleep", "infinity"},
		User:   "nobody",
		Labels: map[string]string{poolLabel: p.image},
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.Discard(resp.ID)
		return "", fmt.Errorf("start container: %w", err)
	}
	return resp.ID, nil
}
