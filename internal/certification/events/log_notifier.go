package events

import "go.uber.org/zap"

// LogNotifier writes notifications to the log. It stands in for the Kafka
// producer when no brokers are configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (l *LogNotifier) Notify(n *Notification) {
	l.logger.Info(n.Subject, append(n.fields(), zap.String("comment", n.Comment))...)
}
