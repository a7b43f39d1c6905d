package apipool

import (
	"errors"

	"github.com/nimbusfs/synccore/pkg/status"
)

// ResultCategory classifies an API response's "result" field into the
// policy buckets the orchestrator (out of scope) decides retry behavior
// from, per spec.md §7's propagation rule.
type ResultCategory uint8

const (
	ResultOK ResultCategory = iota
	ResultRetryable
	ResultPermanent
	ResultIgnore
)

// Named API result codes. Unlike the generic network sentinels
// (ErrPermFail/ErrTempFail), these are the server's own numeric result
// codes as carried in a response hash's "result" field; the exact integers
// are a server-contract detail not disclosed in the retrieved reference
// material, so these are named placeholders a real deployment would pin to
// the live API's documented values.
const (
	APIResultOK              int64 = 0
	APIResultAuthExpired     int64 = 1000
	APIResultOverQuota       int64 = 2003
	APIResultMaintenance     int64 = 5000
	APIResultTempServerError int64 = 5001
)

var (
	ErrPermFail = errors.New("apipool: permanent failure")
	ErrTempFail = errors.New("apipool: temporary failure, retry with backoff")
)

// HandleAPIResult inspects a response node's "result" field and returns
// the category the caller should act on. Over-quota responses additionally
// flip pkg/status's local-full flag, which the upload path must consult
// before every write.
func HandleAPIResult(resp *Node) ResultCategory {
	code := resp.Get("result").NumOr(APIResultOK)
	switch code {
	case APIResultOK:
		return ResultOK
	case APIResultAuthExpired:
		return ResultPermanent
	case APIResultOverQuota:
		status.SetLocalFull(true)
		return ResultPermanent
	case APIResultMaintenance, APIResultTempServerError:
		return ResultRetryable
	default:
		return ResultIgnore
	}
}

// ErrForCategory maps a category to one of the two network-level
// sentinels, for callers that want a plain error rather than branching on
// ResultCategory directly.
func ErrForCategory(c ResultCategory) error {
	switch c {
	case ResultRetryable:
		return ErrTempFail
	case ResultPermanent:
		return ErrPermFail
	default:
		return nil
	}
}

// String renders c as the label value metrics.APIRequestsTotal records it
// under.
func (c ResultCategory) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultRetryable:
		return "retryable"
	case ResultPermanent:
		return "permanent"
	default:
		return "ignore"
	}
}
