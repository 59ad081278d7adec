package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/iota-import/pkg/composables"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	composables.UseLogger(ctx).WithFields(fields).Log(level, msg)
}
