// Package main is the entry point for the hello example service.
package main

import (
	"winsvc/internal/cli"
)

// Service identity registered with the control manager.
const (
	serviceName        = "winsvc-hello"
	serviceDisplayName = "WinSvc Hello Service"
)

func main() {
	cli.Execute(cli.Detail[Config]{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: "Logs a greeting and host resource usage while running.",
		Task:        newHello().run,
	})
}
