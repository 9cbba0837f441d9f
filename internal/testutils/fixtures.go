package testutils

import (
	"time"

	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func NewRequest(id string) *types.Request {
	return &types.Request{
		ID:        id,
		Make:      "Skoda",
		Model:     "Octavia Combi",
		CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// NewLogger discards output and keeps entries on the returned hook.
func NewLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}
