// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON, development mode writes colored console
// output at debug level. Components get named child loggers:
//
//	logger := logging.NewDefault()
//	log := logger.Component("tutor")
//	log.Info("Run finished",
//		logging.LessonID(4),
//		logging.RunID(runID),
//		logging.Elapsed(time.Since(start)),
//	)
package logging
