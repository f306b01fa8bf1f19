// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound calls to the identity gateway.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
