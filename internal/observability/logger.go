package observability

import "github.com/handscan/handscan/internal/logger"

var log = logger.Global().Module("metrics")
