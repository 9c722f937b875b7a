// internal/models/result.go
package models

// FailureKind categorizes a failed oracle call. The set mirrors the
// transport layer: everything here is caught at the gateway and recorded,
// never raised into an analysis batch.
type FailureKind string

const (
	FailureHTTP       FailureKind = "http_error"
	FailureTimeout    FailureKind = "timeout"
	FailureConnection FailureKind = "connection_error"
	FailureRequest    FailureKind = "request_error"
	FailureUnknown    FailureKind = "unknown_error"
)

// OracleSuccess is the parsed payload of a successful scoring call. Score is
// nil when the response carried no usable score; Classification may likewise
// be empty. A success missing both is a parsing downgrade handled by the
// normalizer, not a transport failure.
type OracleSuccess struct {
	Score          *float64 `json:"credit_score,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
	StatusCode     int      `json:"status_code,omitempty"`
}

// OracleFailure is a categorized transport failure.
type OracleFailure struct {
	Kind       FailureKind `json:"error_kind"`
	Detail     string      `json:"detail"`
	StatusCode int         `json:"status_code,omitempty"`
}

// OracleResult is the tagged union returned by the gateway: exactly one of
// Success or Failure is non-nil. Downstream code switches on the tag and
// never re-inspects raw response shape.
type OracleResult struct {
	Success *OracleSuccess `json:"success,omitempty"`
	Failure *OracleFailure `json:"failure,omitempty"`
}

// Ok reports whether the call succeeded at the transport level.
func (r *OracleResult) Ok() bool {
	return r != nil && r.Success != nil
}

// Failed reports whether the call carries a categorized failure.
func (r *OracleResult) Failed() bool {
	return r == nil || r.Failure != nil
}

// SuccessResult wraps a parsed payload in the union.
func SuccessResult(s OracleSuccess) *OracleResult {
	return &OracleResult{Success: &s}
}

// FailureResult wraps a categorized failure in the union.
func FailureResult(kind FailureKind, detail string, statusCode int) *OracleResult {
	return &OracleResult{Failure: &OracleFailure{Kind: kind, Detail: detail, StatusCode: statusCode}}
}

// ToMap renders the result as the plain nested mapping used by the response
// collector and the report layer.
func (r *OracleResult) ToMap() map[string]interface{} {
	if r == nil {
		return map[string]interface{}{"error_kind": string(FailureUnknown), "detail": "nil result"}
	}
	if r.Failure != nil {
		out := map[string]interface{}{
			"error_kind": string(r.Failure.Kind),
			"detail":     r.Failure.Detail,
		}
		if r.Failure.StatusCode != 0 {
			out["status_code"] = r.Failure.StatusCode
		}
		return out
	}
	out := map[string]interface{}{
		"classification": r.Success.Classification,
		"explanation":    r.Success.Explanation,
	}
	if r.Success.Score != nil {
		out["credit_score"] = *r.Success.Score
	}
	return out
}
