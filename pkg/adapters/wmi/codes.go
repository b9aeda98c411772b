package wmi

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

// WBEM status codes. See WbemErrorEnum.
const (
	wbemFailed           uint32 = 0x80041001
	wbemNotFound         uint32 = 0x80041002
	wbemInvalidNamespace uint32 = 0x8004100E
	wbemInvalidClass     uint32 = 0x80041010
	wbemInvalidQuery     uint32 = 0x80041017
	wbemInvalidQueryType uint32 = 0x80041018
	wbemInvalidSyntax    uint32 = 0x80041021

	// Query flags for SWbemServices.ExecQuery.
	wbemFlagReturnImmediately = 0x10
	wbemFlagForwardOnly       = 0x20
)

// nativeError maps a status code onto the native fault vocabulary.
func nativeError(op string, code uint32, msg string) *core.NativeError {
	ne := &core.NativeError{Op: op, Code: code, Message: strings.TrimSpace(msg)}
	switch code {
	case wbemInvalidNamespace:
		ne.Err = core.ErrInvalidNamespace
	case wbemInvalidQuery, wbemInvalidQueryType, wbemInvalidSyntax:
		ne.Err = core.ErrInvalidQuery
	case wbemInvalidClass, wbemNotFound:
		ne.Err = core.ErrInvalidClass
	}
	if ne.Message == "" {
		if ne.Err != nil {
			ne.Message = ne.Err.Error()
		} else {
			ne.Message = fmt.Sprintf("status 0x%08X", code)
		}
	}
	return ne
}

// wmiPath converts a namespace to the backslash form ConnectServer expects.
func wmiPath(ns core.Namespace) string {
	return strings.ReplaceAll(string(ns), "/", `\`)
}
