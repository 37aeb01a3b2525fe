package modules

import (
	"encoding/json"
	"errors"
	"net/http"

	"marketledger/native/market"
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// MarketErrorData is attached to errors raised by the ledger so clients can
// branch on the stable code and category.
type MarketErrorData struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

var categoryStatus = map[market.Category]int{
	market.CategoryAuthorization:   http.StatusForbidden,
	market.CategoryState:           http.StatusConflict,
	market.CategoryValue:           http.StatusUnprocessableEntity,
	market.CategoryExternalAccount: http.StatusBadRequest,
	market.CategoryPolicy:          http.StatusForbidden,
}

// FromMarketError converts a ledger error into an RPC error. Coded errors keep
// their numeric code; anything else is a server error.
func FromMarketError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	code := market.CodeOf(err)
	if code == 0 {
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
	category := market.CategoryOf(err)
	status, ok := categoryStatus[category]
	if !ok {
		status = http.StatusInternalServerError
	}
	if errors.Is(err, market.ErrRecordNotFound) {
		status = http.StatusNotFound
	}
	var merr *market.Error
	message := err.Error()
	if errors.As(err, &merr) {
		message = merr.Message
	}
	return &ModuleError{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
		Data:       MarketErrorData{Category: string(category), Detail: err.Error()},
	}
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

func decodeParams(raw json.RawMessage, out interface{}) *ModuleError {
	if len(raw) == 0 {
		return invalidParams("parameter object required", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}
