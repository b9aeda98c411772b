//go:build windows

package wmi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/leapstack-labs/wqlbridge/pkg/core"
)

const sFalse = 0x00000001

// Adapter talks to the local WMI service through SWbemLocator.
type Adapter struct {
	logger  *slog.Logger
	thread  *comThread
	locator *ole.IDispatch
}

// New creates a WMI adapter. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger}
}

// Name returns "wmi".
func (a *Adapter) Name() string { return "wmi" }

// Connect starts the COM thread and creates the locator on it.
func (a *Adapter) Connect(_ context.Context, _ core.AdapterConfig) error {
	if a.thread != nil {
		return nil
	}

	th, err := startThread(func() error {
		if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
			var oleErr *ole.OleError
			if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
				return comError("CoInitializeEx", err)
			}
		}

		unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
		if err != nil {
			ole.CoUninitialize()
			return comError("CreateObject", err)
		}
		defer unknown.Release()

		locator, err := unknown.QueryInterface(ole.IID_IDispatch)
		if err != nil {
			ole.CoUninitialize()
			return comError("QueryInterface", err)
		}
		a.locator = locator
		return nil
	}, func() {
		if a.locator != nil {
			a.locator.Release()
			a.locator = nil
		}
		ole.CoUninitialize()
	})
	if err != nil {
		return err
	}

	a.thread = th
	a.logger.Debug("wmi locator ready")
	return nil
}

// Close stops the COM thread, releasing the locator.
func (a *Adapter) Close() error {
	if a.thread != nil {
		a.thread.stop()
		a.thread = nil
	}
	return nil
}

// Open connects to ns on the local machine.
func (a *Adapter) Open(ctx context.Context, ns core.Namespace) (core.Session, error) {
	th := a.thread
	if th == nil {
		return nil, fmt.Errorf("wmi adapter not connected")
	}

	s := &session{thread: th, logger: a.logger.With(slog.String("namespace", ns.String()))}
	err := th.do(ctx, func() error {
		raw, err := oleutil.CallMethod(a.locator, "ConnectServer", ".", wmiPath(ns))
		if err != nil {
			return comError("ConnectServer", err)
		}
		s.service = raw.ToIDispatch()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

type session struct {
	thread  *comThread
	service *ole.IDispatch
	logger  *slog.Logger
}

// ExecQuery submits the query forward-only and returning immediately, so
// results stream as the service produces them.
func (s *session) ExecQuery(ctx context.Context, query string) (core.ObjectSet, error) {
	s.logger.Debug("executing query", slog.String("query", query))

	set := &objectSet{thread: s.thread}
	err := s.thread.do(ctx, func() error {
		if s.service == nil {
			return fmt.Errorf("session closed")
		}
		raw, err := oleutil.CallMethod(s.service, "ExecQuery", query, "WQL",
			wbemFlagReturnImmediately|wbemFlagForwardOnly)
		if err != nil {
			return comError("ExecQuery", err)
		}
		result := raw.ToIDispatch()
		defer result.Release()

		enumRaw, err := result.GetProperty("_NewEnum")
		if err != nil {
			return comError("ExecQuery", err)
		}
		defer func() { _ = enumRaw.Clear() }()

		enum, err := enumRaw.ToIUnknown().IEnumVARIANT(ole.IID_IEnumVariant)
		if err != nil {
			return comError("ExecQuery", err)
		}
		set.enum = enum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (s *session) Close() error {
	return s.thread.do(context.Background(), func() error {
		if s.service != nil {
			s.service.Release()
			s.service = nil
		}
		return nil
	})
}

type objectSet struct {
	thread *comThread
	enum   *ole.IEnumVARIANT
}

func (o *objectSet) Next(ctx context.Context) (core.Object, error) {
	var obj core.Object
	err := o.thread.do(ctx, func() error {
		if o.enum == nil {
			return io.EOF
		}
		item, n, err := o.enum.Next(1)
		if n == 0 {
			var oleErr *ole.OleError
			if err != nil && (!errors.As(err, &oleErr) || oleErr.Code() != sFalse) {
				return comError("Next", err)
			}
			return io.EOF
		}
		defer func() { _ = item.Clear() }()

		snap, err := snapshot(item.ToIDispatch())
		if err != nil {
			return err
		}
		obj = snap
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (o *objectSet) Close() error {
	return o.thread.do(context.Background(), func() error {
		if o.enum != nil {
			o.enum.Release()
			o.enum = nil
		}
		return nil
	})
}

// snapshot copies every property of an SWbemObject into Go values so the
// object can be read off the COM thread.
func snapshot(item *ole.IDispatch) (*object, error) {
	propsRaw, err := oleutil.GetProperty(item, "Properties_")
	if err != nil {
		return nil, comError("Next", err)
	}
	props := propsRaw.ToIDispatch()
	defer func() { _ = propsRaw.Clear() }()

	obj := &object{values: make(map[string]any)}
	err = oleutil.ForEach(props, func(v *ole.VARIANT) error {
		prop := v.ToIDispatch()

		nameRaw, err := oleutil.GetProperty(prop, "Name")
		if err != nil {
			return err
		}
		name := nameRaw.ToString()
		_ = nameRaw.Clear()

		valRaw, err := oleutil.GetProperty(prop, "Value")
		if err != nil {
			return err
		}
		obj.names = append(obj.names, name)
		obj.values[name] = variantValue(valRaw)
		_ = valRaw.Clear()
		return nil
	})
	if err != nil {
		return nil, comError("Next", err)
	}
	return obj, nil
}

func variantValue(v *ole.VARIANT) any {
	if v.VT&ole.VT_ARRAY != 0 {
		arr := v.ToArray()
		if arr == nil {
			return nil
		}
		return arr.ToValueArray()
	}
	return v.Value()
}

// comError converts a go-ole error into a NativeError, preferring the WMI
// status code carried in the exception info over the dispatch HRESULT.
func comError(op string, err error) *core.NativeError {
	var code uint32
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		code = uint32(oleErr.Code())
		if sub, ok := any(oleErr).(interface{ SubError() error }); ok {
			if sc, ok := sub.SubError().(interface{ SCODE() uint32 }); ok && sc.SCODE() != 0 {
				code = sc.SCODE()
			}
		}
	}
	return nativeError(op, code, err.Error())
}

var _ core.Adapter = (*Adapter)(nil)
