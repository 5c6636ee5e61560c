package util

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestNopScanner(t *testing.T) {
	var s Scanner = NopScanner{}
	assert.NoError(t, s.Scan(context.Background(), "a.jpg", strings.NewReader("data")))
}

func TestClamdScanner_Unreachable(t *testing.T) {
	s := NewClamdScanner("tcp://127.0.0.1:1", zaptest.NewLogger(t))

	err := s.Scan(context.Background(), "a.jpg", strings.NewReader("data"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInfected)
	assert.Error(t, s.CheckConnection(context.Background()))
}
