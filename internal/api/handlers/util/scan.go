package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	clamd "github.com/dutchcoders/go-clamd"
	"go.uber.org/zap"
)

var ErrInfected = errors.New("file rejected by virus scan")

// Scanner inspects a selected file before it is accepted into the registry.
type Scanner interface {
	Scan(ctx context.Context, name string, r io.Reader) error
}

type ClamdScanner struct {
	client *clamd.Clamd
	logger *zap.Logger
}

func NewClamdScanner(url string, logger *zap.Logger) *ClamdScanner {
	return &ClamdScanner{client: clamd.NewClamd(url), logger: logger}
}

// Scan streams r to clamd and fails with ErrInfected when a signature matches.
func (s *ClamdScanner) Scan(ctx context.Context, name string, r io.Reader) error {
	// Closing abort releases the clamd connection.
	abort := make(chan bool)
	var once sync.Once
	stop := func() { once.Do(func() { close(abort) }) }
	defer stop()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-finished:
		}
	}()

	response, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan failed for %s: %w", name, err)
	}

	var scanErr error
	for res := range response {
		switch res.Status {
		case clamd.RES_FOUND:
			s.logger.Warn("[SCAN] virus detected", zap.String("file", name), zap.String("signature", res.Description))
			scanErr = fmt.Errorf("%w: %s", ErrInfected, res.Description)
		case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
			if scanErr == nil {
				scanErr = fmt.Errorf("scan failed for %s: %s", name, res.Description)
			}
		}
	}
	if scanErr == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.logger.Debug("[SCAN] clean", zap.String("file", name))
	}
	return scanErr
}

func (s *ClamdScanner) CheckConnection(context.Context) error {
	return s.client.Ping()
}

// NopScanner accepts every file. Used when no ClamAV endpoint is configured.
type NopScanner struct{}

func (NopScanner) Scan(context.Context, string, io.Reader) error { return nil }
