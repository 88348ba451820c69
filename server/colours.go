package server

import (
	"fmt"
	"net/http"
)

const (
	red        = "\033[31m"
	green      = "\033[32m"
	yellow     = "\033[33m"
	blue       = "\033[34m"
	cyan       = "\033[36m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return green
	case http.MethodPost:
		return blue
	case http.MethodPut:
		return cyan
	case http.MethodDelete:
		return yellow
	}
	return gray
}

// statusColor groups redirects with successes: most browser routes answer
// with a 302 or 303.
func statusColor(status int) string {
	switch {
	case status >= 500:
		return red
	case status >= 400:
		return yellow
	case status == 0:
		return gray
	}
	return green
}

func colorMethod(method string) string {
	return methodColor(method) + fmt.Sprintf(" %-7s", method) + resetColor
}

func colorStatus(status int) string {
	return statusColor(status) + fmt.Sprintf("%3d", status) + resetColor
}
