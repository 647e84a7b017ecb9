package rmaws

import (
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
)

var throttleCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"RequestLimitExceeded":                   true,
	"TooManyRequestsException":               true,
	"SlowDown":                               true,
	"ProvisionedThroughputExceededException": true,
}

// IsThrottle reports whether err, or any error it wraps, was caused by API
// rate limiting.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	if request.IsErrorThrottle(err) {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && throttleCodes[aerr.Code()] {
		return true
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) {
		return rerr.StatusCode() == http.StatusTooManyRequests
	}
	return false
}

// IsNotFound reports whether err, or any error it wraps, says the addressed
// object does not exist.
func IsNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) {
		return rerr.StatusCode() == http.StatusNotFound
	}
	return false
}
