// SPDX-License-Identifier: AGPL-3.0-only

// Package dispatch posts host commands to the editor's local control
// endpoint.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	urlpkg "net/url"
	"strconv"
	"sync"
	"time"

	"github.com/netwebdave/autodavesave/internal/config"
	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/logging"
)

// Sender identifies this process to the host endpoint
const Sender = "autodavesave"

// HTTPDispatcher queues posted commands and sends them from a worker.
// PostCommand never waits for the request.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	queue   chan int
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	logger  *logging.Logger
}

// NewHTTPDispatcher creates a dispatcher for the host described by cfg
func NewHTTPDispatcher(cfg config.HostConfig, logger *logging.Logger) *HTTPDispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	host := cfg.Address
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	return &HTTPDispatcher{
		baseURL: fmt.Sprintf("http://%s:%d/command", host, cfg.Port),
		client:  &http.Client{},
		timeout: cfg.RequestTimeout,
		queue:   make(chan int, size),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Start runs the send worker until ctx is done or Close is called
func (d *HTTPDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.done:
				return
			case id := <-d.queue:
				if err := d.send(ctx, id); err != nil {
					d.logger.Errorf("Host command %d failed: %v", id, err)
				}
			}
		}
	}()
}

// PostCommand queues commandID. A full queue or a closed dispatcher is
// reported as a DispatchError carrying the matching platform code.
func (d *HTTPDispatcher) PostCommand(commandID int) error {
	select {
	case <-d.done:
		return errors.Dispatch(commandID, errors.CodeInvalidWindowHandle)
	default:
	}
	select {
	case d.queue <- commandID:
		return nil
	default:
		return errors.Dispatch(commandID, errors.CodeQueueFull)
	}
}

// Close stops the worker and waits for an in-flight request to finish
func (d *HTTPDispatcher) Close() error {
	d.once.Do(func() { close(d.done) })
	d.wg.Wait()
	return nil
}

// send delivers one command to the host endpoint
func (d *HTTPDispatcher) send(ctx context.Context, commandID int) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	params := urlpkg.Values{}
	params.Set("id", strconv.Itoa(commandID))
	params.Set("sender", Sender)

	reqURL := d.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("host returned status %s", resp.Status)
	}
	d.logger.Debugf("Host accepted command %d", commandID)
	return nil
}
