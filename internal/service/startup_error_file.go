package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFileName is the file WriteStartupErrorFile writes in its
// directory.
const StartupErrorFileName = "startup-error.log"

// WriteStartupErrorFile records the error that prevented serviceName from
// starting. The file is overwritten on each call so only the most recent
// failure is kept.
func WriteStartupErrorFile(dir, serviceName string, err error) {
	_ = os.MkdirAll(dir, 0755)

	f, ferr := os.Create(filepath.Join(dir, StartupErrorFileName))
	if ferr != nil {
		return
	}
	defer f.Close()

	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] %s STARTUP ERROR\n%v\n", ts, serviceName, err)
}
