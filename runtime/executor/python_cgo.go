//go:build cgo

package executor

/*
#cgo pkg-config: python3-embed
#include <Python.h>
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/naab-lang/naab/core/errors"
	"github.com/naab-lang/naab/core/value"
)

var pyInitOnce sync.Once

// PythonExecutor is the embedded Python runtime (spec.md §4.C9). It is
// initialised once, on the main thread, and thereafter shared by every
// Python block across the process. Evaluation always goes through the
// generic PyGILState_Ensure/Release path rather than a hand-rolled
// preregistered PyThreadState table: Go's goroutine scheduler gives no
// stable mapping from a goroutine to the OS thread pyWarmup pinned it
// to unless that exact goroutine is the one evaluating, which the pool
// doesn't guarantee across tasks. PyGILState_Ensure is always safe,
// including on a thread CPython has never seen, so it subsumes both the
// preregistered and the fallback path spec.md describes — the
// distinction survives only in pyWarmup's one-time per-worker
// registration.
type PythonExecutor struct {
	mu sync.Mutex
}

// NewPythonExecutor initialises the interpreter exactly once for the
// whole process (Py_Initialize, then release the GIL by saving and
// discarding the main thread's state, per spec.md §4.C9).
func NewPythonExecutor() (*PythonExecutor, error) {
	var initErr error
	pyInitOnce.Do(func() {
		C.Py_Initialize()
		if C.Py_IsInitialized() == 0 {
			initErr = errors.New(errors.Import, errors.Location{}, "python executor: Py_Initialize failed").WithCode("E204")
			return
		}
		C.PyEval_SaveThread() // release the GIL; callers re-acquire via PyGILState_Ensure
	})
	if initErr != nil {
		return nil, initErr
	}
	return &PythonExecutor{}, nil
}

func (e *PythonExecutor) Language() string    { return "python" }
func (e *PythonExecutor) IsInitialised() bool { return C.Py_IsInitialized() != 0 }

// pyWarmup exercises every foreign primitive once before a worker's
// first real task: module lookup, eval, statement exec, type checks and
// conversions for int/float/bool/str, list/tuple/dict ops, and error
// fetch/clear. Per spec.md §4.C9 this works around platforms whose
// control-flow-integrity shadow-memory allocator faults late once
// address space fragments — running it first, before any other
// in-process tenant (the JS engine) has a chance to fragment that
// space, is why the pool's per-worker init hook calls this before
// anything else.
func (e *PythonExecutor) pyWarmup() {
	gil := C.PyGILState_Ensure()
	defer C.PyGILState_Release(gil)

	mainModName := C.CString("__main__")
	defer C.free(unsafe.Pointer(mainModName))
	mainMod := C.PyImport_AddModule(mainModName)
	globals := C.PyModule_GetDict(mainMod)

	src := C.CString("1 + 1")
	defer C.free(unsafe.Pointer(src))
	if result := C.PyRun_String(src, C.Py_eval_input, globals, globals); result != nil {
		C.Py_DecRef(result)
	}

	stmt := C.CString("_naab_warmup = None")
	defer C.free(unsafe.Pointer(stmt))
	if result := C.PyRun_String(stmt, C.Py_file_input, globals, globals); result != nil {
		C.Py_DecRef(result)
	}

	s := C.CString("warmup")
	i := C.PyLong_FromLongLong(C.longlong(1))
	f := C.PyFloat_FromDouble(C.double(1.5))
	b := C.PyBool_FromLong(1)
	u := C.PyUnicode_FromString(s)
	C.free(unsafe.Pointer(s))
	l := C.PyList_New(0)
	t := C.PyTuple_New(0)
	d := C.PyDict_New()
	for _, obj := range []*C.PyObject{i, f, b, u, l, t, d} {
		if obj != nil {
			C.Py_DecRef(obj)
		}
	}

	if C.PyErr_Occurred() != nil {
		C.PyErr_Clear()
	}
}

// Warmup is the hook installed via pool.WithWorkerInit: it pins the
// calling goroutine to its OS thread for the worker's lifetime (so a
// Python-heavy worker never hops threads mid-call) and runs pyWarmup.
func (e *PythonExecutor) Warmup(workerID int) {
	runtime.LockOSThread()
	e.pyWarmup()
}

func (e *PythonExecutor) Execute(ctx context.Context, code string) error {
	_, err := e.eval(code, false)
	return err
}

func (e *PythonExecutor) ExecuteWithReturn(ctx context.Context, code string) (value.Value, error) {
	return e.eval(code, true)
}

func (e *PythonExecutor) CallFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	gil := C.PyGILState_Ensure()
	defer C.PyGILState_Release(gil)

	mainModName := C.CString("__main__")
	defer C.free(unsafe.Pointer(mainModName))
	mainMod := C.PyImport_AddModule(mainModName)
	globals := C.PyModule_GetDict(mainMod)
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	fn := C.PyDict_GetItemString(globals, cname)
	if fn == nil {
		return nil, langError(e.Language(), "", errors.New(errors.Runtime, errors.Location{}, "function %q is not defined", name).WithCode("E102"))
	}
	if C.PyCallable_Check(fn) == 0 {
		return nil, langError(e.Language(), "", errors.New(errors.Runtime, errors.Location{}, "%q is not callable", name).WithCode("E102"))
	}

	argTuple := C.PyTuple_New(C.Py_ssize_t(len(args)))
	defer C.Py_DecRef(argTuple)
	for i, a := range args {
		pyArg, err := toPython(a)
		if err != nil {
			return nil, langError(e.Language(), "", err)
		}
		C.PyTuple_SetItem(argTuple, C.Py_ssize_t(i), pyArg) // steals the reference
	}

	result := C.PyObject_CallObject(fn, argTuple)
	if result == nil {
		return nil, langError(e.Language(), "", fetchPyError())
	}
	defer C.Py_DecRef(result)
	return fromPython(result)
}

// eval implements spec.md §4.C9's evaluation strategy: try eval-mode
// first; on a syntax error, split into "every line but the last
// non-empty one" (executed in statement mode) plus "the last line"
// (evaluated in expression mode); if the last line is itself a
// statement, execute it and return Null.
func (e *PythonExecutor) eval(code string, wantReturn bool) (value.Value, error) {
	gil := C.PyGILState_Ensure()
	defer C.PyGILState_Release(gil)

	mainModName := C.CString("__main__")
	defer C.free(unsafe.Pointer(mainModName))
	mainMod := C.PyImport_AddModule(mainModName)
	globals := C.PyModule_GetDict(mainMod)

	if !wantReturn {
		src := C.CString(code)
		defer C.free(unsafe.Pointer(src))
		result := C.PyRun_String(src, C.Py_file_input, globals, globals)
		if result == nil {
			return nil, fetchPyError()
		}
		C.Py_DecRef(result)
		return value.Null, nil
	}

	src := C.CString(code)
	result := C.PyRun_String(src, C.Py_eval_input, globals, globals)
	C.free(unsafe.Pointer(src))
	if result != nil {
		defer C.Py_DecRef(result)
		return fromPython(result)
	}
	if C.PyErr_ExceptionMatches(C.PyExc_SyntaxError) == 0 {
		return nil, fetchPyError()
	}
	C.PyErr_Clear()

	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	lastIdx := len(lines) - 1
	for lastIdx > 0 && strings.TrimSpace(lines[lastIdx]) == "" {
		lastIdx--
	}
	head := strings.Join(lines[:lastIdx], "\n")
	last := lines[lastIdx]

	if strings.TrimSpace(head) != "" {
		headSrc := C.CString(head)
		defer C.free(unsafe.Pointer(headSrc))
		headResult := C.PyRun_String(headSrc, C.Py_file_input, globals, globals)
		if headResult == nil {
			return nil, fetchPyError()
		}
		C.Py_DecRef(headResult)
	}

	lastSrc := C.CString(last)
	defer C.free(unsafe.Pointer(lastSrc))
	lastResult := C.PyRun_String(lastSrc, C.Py_eval_input, globals, globals)
	if lastResult != nil {
		defer C.Py_DecRef(lastResult)
		return fromPython(lastResult)
	}
	if C.PyErr_ExceptionMatches(C.PyExc_SyntaxError) == 0 {
		return nil, fetchPyError()
	}
	C.PyErr_Clear()

	stmtResult := C.PyRun_String(lastSrc, C.Py_file_input, globals, globals)
	if stmtResult == nil {
		return nil, fetchPyError()
	}
	C.Py_DecRef(stmtResult)
	return value.Null, nil
}

// fetchPyError recovers the current Python exception's type name and
// message per spec.md §4.C9's rule that failures carry the foreign
// runtime's error type name and message. Caller must hold the GIL.
func fetchPyError() error {
	var ptype, pvalue, ptraceback *C.PyObject
	C.PyErr_Fetch(&ptype, &pvalue, &ptraceback)
	C.PyErr_NormalizeException(&ptype, &pvalue, &ptraceback)
	defer func() {
		if ptype != nil {
			C.Py_DecRef(ptype)
		}
		if pvalue != nil {
			C.Py_DecRef(pvalue)
		}
		if ptraceback != nil {
			C.Py_DecRef(ptraceback)
		}
	}()

	typeName := "Exception"
	if ptype != nil {
		attr := C.CString("__name__")
		if nameAttr := C.PyObject_GetAttrString(ptype, attr); nameAttr != nil {
			typeName = C.GoString(C.PyUnicode_AsUTF8(nameAttr))
			C.Py_DecRef(nameAttr)
		}
		C.free(unsafe.Pointer(attr))
	}
	message := ""
	if pvalue != nil {
		if str := C.PyObject_Str(pvalue); str != nil {
			message = C.GoString(C.PyUnicode_AsUTF8(str))
			C.Py_DecRef(str)
		}
	}
	return errors.New(errors.Runtime, errors.Location{}, "%s: %s", typeName, message).WithCode("E205")
}

// toPython implements the NAAb->Python half of spec.md §4.C7's
// marshaller: Null->None, Int->int, Float->float, Bool->bool,
// String->str, List->list (recursive), Dict->dict (string keys,
// recursive), Foreign(python)->underlying object (no copy). Caller must
// hold the GIL.
func toPython(v value.Value) (*C.PyObject, error) {
	switch vv := v.(type) {
	case value.Int:
		return C.PyLong_FromLongLong(C.longlong(vv)), nil
	case value.Float:
		return C.PyFloat_FromDouble(C.double(vv)), nil
	case value.Bool:
		if vv {
			return C.PyBool_FromLong(1), nil
		}
		return C.PyBool_FromLong(0), nil
	case value.Str:
		cstr := C.CString(string(vv))
		defer C.free(unsafe.Pointer(cstr))
		return C.PyUnicode_FromString(cstr), nil
	case *value.List:
		list := C.PyList_New(C.Py_ssize_t(vv.Len()))
		for i := 0; i < vv.Len(); i++ {
			elem, _ := vv.Get(i)
			pyElem, err := toPython(elem)
			if err != nil {
				return nil, err
			}
			C.PyList_SetItem(list, C.Py_ssize_t(i), pyElem)
		}
		return list, nil
	case *value.Dict:
		d := C.PyDict_New()
		for _, k := range vv.Keys() {
			elem, _ := vv.Get(k)
			pyElem, err := toPython(elem)
			if err != nil {
				return nil, err
			}
			ckey := C.CString(k)
			C.PyDict_SetItemString(d, ckey, pyElem)
			C.free(unsafe.Pointer(ckey))
			C.Py_DecRef(pyElem)
		}
		return d, nil
	case *value.Foreign:
		if vv.Language == "python" {
			obj := vv.Handle.(*C.PyObject)
			C.Py_IncRef(obj)
			return obj, nil
		}
		return nil, errors.New(errors.Type, errors.Location{}, "marshalling receives an unrepresentable value: a %s foreign handle has no python representation", vv.Language).WithCode("E0706")
	default:
		if v == nil || v.Kind() == value.KindNull {
			none := C.Py_None
			C.Py_IncRef(none)
			return none, nil
		}
		return nil, errors.New(errors.Type, errors.Location{}, "marshalling receives an unrepresentable value: %s has no python representation", v.Kind()).WithCode("E0706")
	}
}

// fromPython implements the Python->NAAb half of spec.md §4.C7:
// None->Null; bool checked before int (bool is a subtype of int in
// CPython); int->Int if it fits int64 else Float; float->Float;
// str->String; list/tuple->List; dict->Dict if every key is a string
// else Type/unsupported; any other object->Foreign, whose Drop
// re-enters the runtime under the GIL to Py_DecRef it. Caller must hold
// the GIL.
func fromPython(obj *C.PyObject) (value.Value, error) {
	switch {
	case obj == C.Py_None:
		return value.Null, nil
	case C.PyBool_Check(obj) != 0:
		return value.Bool(C.PyObject_IsTrue(obj) != 0), nil
	case C.PyLong_Check(obj) != 0:
		overflow := C.int(0)
		n := int64(C.PyLong_AsLongLongAndOverflow(obj, &overflow))
		if overflow != 0 {
			return value.Float(C.PyFloat_AsDouble(obj)), nil
		}
		return value.Int(n), nil
	case C.PyFloat_Check(obj) != 0:
		return value.Float(C.PyFloat_AsDouble(obj)), nil
	case C.PyUnicode_Check(obj) != 0:
		return value.Str(C.GoString(C.PyUnicode_AsUTF8(obj))), nil
	case C.PyTuple_Check(obj) != 0:
		n := C.PyTuple_Size(obj)
		items := make([]value.Value, int(n))
		for i := C.Py_ssize_t(0); i < n; i++ {
			converted, err := fromPython(C.PyTuple_GetItem(obj, i))
			if err != nil {
				return nil, err
			}
			items[int(i)] = converted
		}
		return value.NewList(items...), nil
	case C.PyList_Check(obj) != 0:
		n := C.PyList_Size(obj)
		items := make([]value.Value, int(n))
		for i := C.Py_ssize_t(0); i < n; i++ {
			converted, err := fromPython(C.PyList_GetItem(obj, i))
			if err != nil {
				return nil, err
			}
			items[int(i)] = converted
		}
		return value.NewList(items...), nil
	case C.PyDict_Check(obj) != 0:
		d := value.NewDict()
		var pos C.Py_ssize_t
		var pkey, pval *C.PyObject
		for C.PyDict_Next(obj, &pos, &pkey, &pval) != 0 {
			if C.PyUnicode_Check(pkey) == 0 {
				return nil, errors.New(errors.Type, errors.Location{}, "marshalling receives an unrepresentable value: python dict has a non-string key").WithCode("E0706")
			}
			key := C.GoString(C.PyUnicode_AsUTF8(pkey))
			val, err := fromPython(pval)
			if err != nil {
				return nil, err
			}
			d.Set(key, val)
		}
		return d, nil
	default:
		C.Py_IncRef(obj)
		return value.NewForeign("python", obj, func() {
			gil := C.PyGILState_Ensure()
			C.Py_DecRef(obj)
			C.PyGILState_Release(gil)
		}), nil
	}
}
