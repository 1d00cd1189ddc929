package logger

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

var (
	InfoLogger     *log.Logger
	WarnLogger     *log.Logger
	ErrorLogger    *log.Logger
	CriticalLogger *log.Logger
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	CriticalLogger = log.New(os.Stderr, "CRITICAL: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// formatFields renders the optional context map as sorted key=value pairs so
// log lines stay grep-able.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func Info(msg string) {
	InfoLogger.Output(2, msg)
}

func Warn(msg string, fields map[string]interface{}) {
	WarnLogger.Output(2, msg+formatFields(fields))
}

func Error(msg string, err error, fields map[string]interface{}) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	ErrorLogger.Output(2, msg+formatFields(fields))
}

// Critical is reserved for money/stock inconsistencies that need operator
// intervention (e.g. a stock credit failing after a cancellation committed).
// These must never disappear into regular error noise.
func Critical(msg string, err error, fields map[string]interface{}) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	CriticalLogger.Output(2, msg+formatFields(fields))
}
