package driver

import (
	"fmt"
	"strings"
)

// StoreErrorDetail is one entry of the store's "errors" list.
type StoreErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StoreError is a request the store answered but rejected.
type StoreError struct {
	Op      string
	Status  int
	Details []StoreErrorDetail
	Body    string
}

func (e *StoreError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s rejected by store", e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	for i, d := range e.Details {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s %s", d.Code, d.Message)
	}
	if len(e.Details) == 0 && e.Body != "" {
		fmt.Fprintf(&sb, ": %s", e.Body)
	}
	return sb.String()
}
