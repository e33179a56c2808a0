package resilience

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

const retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"

// StatusCode returns the HTTP status carried by err, or 0 when it has none.
// Google API errors are recognised, as is any error exposing StatusCode() int.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return code
		}
		if apiErr.GRPCStatus().Code() == codes.ResourceExhausted {
			return http.StatusTooManyRequests
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code > 0 {
		return gErr.Code
	}

	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// IsRateLimitError reports whether err is a 429 or mentions quota or rate
// limiting in its message. The match is case-sensitive.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if StatusCode(err) == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}

// IsQuotaExceeded reports whether err is a 429 whose details carry a
// QuotaFailure record, i.e. a hard quota rather than a burst limit.
func IsQuotaExceeded(err error) bool {
	if StatusCode(err) != http.StatusTooManyRequests {
		return false
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.Details().QuotaFailure != nil {
		return true
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && len(gErr.Details) > 0 {
		raw, mErr := json.Marshal(gErr.Details)
		return mErr == nil && strings.Contains(string(raw), "QuotaFailure")
	}
	return false
}

// RetryDelay extracts the server-suggested wait from a RetryInfo detail.
// ok is false when err carries no positive delay.
func RetryDelay(err error) (d time.Duration, ok bool) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if ri := apiErr.Details().RetryInfo; ri != nil && ri.GetRetryDelay() != nil {
			if d := ri.GetRetryDelay().AsDuration(); d > 0 {
				return d, true
			}
		}
	}

	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return 0, false
	}
	for _, detail := range gErr.Details {
		m, isMap := detail.(map[string]interface{})
		if !isMap || m["@type"] != retryInfoType {
			continue
		}
		raw, isString := m["retryDelay"].(string)
		if !isString {
			continue
		}
		if d, ok := parseSeconds(raw); ok {
			return d, true
		}
	}
	return 0, false
}

func parseSeconds(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseDuration(raw); err == nil {
		return d, d > 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSuffix(raw, "s"), 64)
	if err != nil || secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
