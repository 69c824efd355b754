package jsbind

import (
	"errors"
	"io/fs"
	"path"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/spf13/afero"

	"github.com/warpdl/warpsched/pkg/logger"
)

// NewRegistry returns a require registry that resolves modules from fsys and
// prints console output through l. Pass it to the event loop, then call
// EnableConsole on the loop's runtime.
func NewRegistry(fsys afero.Fs, l logger.Logger) *require.Registry {
	reg := require.NewRegistry(require.WithLoader(SourceLoader(fsys)))
	reg.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(NewPrinter(l)))
	return reg
}

// EnableConsole defines the global console object backed by the registry's
// printer. The registry must already be enabled on vm.
func EnableConsole(vm *goja.Runtime) {
	console.Enable(vm)
}

// SourceLoader reads module sources from fsys.
func SourceLoader(fsys afero.Fs) require.SourceLoader {
	return func(p string) ([]byte, error) {
		data, err := afero.ReadFile(fsys, path.Clean(p))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, require.ModuleFileDoesNotExistError
		}
		return data, err
	}
}

// LoadProgram reads and compiles the script at p.
func LoadProgram(fsys afero.Fs, p string) (*goja.Program, error) {
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		return nil, err
	}
	return goja.Compile(p, string(data), false)
}

// Printer routes console output to a logger.
type Printer struct {
	log logger.Logger
}

// NewPrinter returns a console printer writing to l.
func NewPrinter(l logger.Logger) *Printer {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Printer{log: l}
}

func (p *Printer) Log(s string) {
	p.log.Info("js: %s", s)
}

func (p *Printer) Warn(s string) {
	p.log.Warning("js: %s", s)
}

func (p *Printer) Error(s string) {
	p.log.Error("js: %s", s)
}

var _ console.Printer = (*Printer)(nil)
