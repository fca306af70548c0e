//go:build windows

package evtx

import (
	"fmt"
	"unicode/utf16"
	"unsafe"

	"fleetlens/internal/parser"

	"github.com/pterm/pterm"
	"golang.org/x/sys/windows"
)

// osLogTier reads the file through the host event-log API (wevtapi): the
// OS opens the container and renders each record to XML, which is then
// parsed with the shared fragment extractor. Only runs on the owning host.
type osLogTier struct {
	logger *pterm.Logger
}

var (
	modwevtapi    = windows.NewLazySystemDLL("wevtapi.dll")
	procEvtQuery  = modwevtapi.NewProc("EvtQuery")
	procEvtNext   = modwevtapi.NewProc("EvtNext")
	procEvtRender = modwevtapi.NewProc("EvtRender")
	procEvtClose  = modwevtapi.NewProc("EvtClose")
)

const (
	evtQueryFilePath         = 0x2
	evtQueryForwardDirection = 0x100
	evtRenderEventXML        = 1
	evtNextBatchSize         = 64
)

func newOSLogTier(logger *pterm.Logger) *osLogTier {
	return &osLogTier{logger: logger}
}

func (t *osLogTier) name() string { return "oslog" }

func (t *osLogTier) available() bool {
	return modwevtapi.Load() == nil
}

func (t *osLogTier) parseFile(path string) parser.FileResult {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return parser.FileResult{Err: fmt.Errorf("encode path: %w", err)}
	}
	queryPtr, err := windows.UTF16PtrFromString("*")
	if err != nil {
		return parser.FileResult{Err: fmt.Errorf("encode query: %w", err)}
	}

	query, _, callErr := procEvtQuery.Call(
		0, // local session
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(queryPtr)),
		uintptr(evtQueryFilePath|evtQueryForwardDirection),
	)
	if query == 0 {
		return parser.FileResult{Err: fmt.Errorf("EvtQuery %s: %w", path, callErr)}
	}
	defer procEvtClose.Call(query)

	var res parser.FileResult
	handles := make([]uintptr, evtNextBatchSize)
	for {
		var returned uint32
		ok, _, _ := procEvtNext.Call(
			query,
			uintptr(len(handles)),
			uintptr(unsafe.Pointer(&handles[0])),
			windows.INFINITE,
			0,
			uintptr(unsafe.Pointer(&returned)),
		)
		if ok == 0 || returned == 0 {
			break
		}
		for _, h := range handles[:returned] {
			frag, renderErr := renderXML(h)
			procEvtClose.Call(h)
			if renderErr != nil {
				res.RecordsSkipped++
				continue
			}
			entry, converted := parseEventFragment(frag)
			if !converted {
				res.RecordsSkipped++
				continue
			}
			entry.SequenceNumber = len(res.Entries) + 1
			res.Entries = append(res.Entries, entry)
		}
	}
	return res
}

// renderXML asks the OS to render one record handle as an XML fragment.
func renderXML(h uintptr) (string, error) {
	var used, props uint32
	// First call sizes the buffer.
	procEvtRender.Call(0, h, evtRenderEventXML, 0, 0,
		uintptr(unsafe.Pointer(&used)), uintptr(unsafe.Pointer(&props)))
	if used == 0 {
		return "", fmt.Errorf("EvtRender returned empty buffer size")
	}

	buf := make([]uint16, used/2+1)
	ok, _, callErr := procEvtRender.Call(0, h, evtRenderEventXML,
		uintptr(used+2),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&used)),
		uintptr(unsafe.Pointer(&props)))
	if ok == 0 {
		return "", fmt.Errorf("EvtRender: %w", callErr)
	}

	end := 0
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(utf16.Decode(buf[:end])), nil
}
