package load

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/hamba/avdl"
	"github.com/hamba/avdl/reader"
)

// state is shared by a Loader and every child Loader it spawns while
// resolving nested `import idl` statements, so caching and cycle detection
// apply across the whole import graph, not just one file.
type state struct {
	cache   map[string]*cached
	loading map[string]bool
	diags   *avdl.Diagnostics
}

type cached struct {
	types    []avdl.NamedSchema
	messages map[string]*avdl.Message
	order    []string
}

// Loader resolves `import` statements for one directory or base URL and
// implements reader.Importer so reader.Read can call back into it directly
// (spec §4.3: "imports are expanded at the point of their import
// statement").
type Loader struct {
	state   *state
	dir     string
	read    func(resolved string) (string, error)
	resolve func(dir, path string) (string, error)
	dirOf   func(resolved string) string
}

// NewFileLoader creates a Loader that resolves import paths relative to
// rootDir on the local filesystem.
func NewFileLoader(rootDir string) *Loader {
	return &Loader{
		state:   newState(),
		dir:     rootDir,
		read:    readFile,
		resolve: resolveFilePath,
		dirOf:   filepath.Dir,
	}
}

// NewHTTPLoader creates a Loader that resolves import paths against baseURL
// over HTTP, using client (or http.DefaultClient if nil).
func NewHTTPLoader(baseURL string, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{
		state:   newState(),
		dir:     baseURL,
		read:    httpRead(client),
		resolve: resolveHTTPPath,
		dirOf:   httpDirOf,
	}
}

func newState() *state {
	return &state{cache: map[string]*cached{}, loading: map[string]bool{}, diags: &avdl.Diagnostics{}}
}

// LoadFile reads and resolves the root IDL file at path, expanding every
// import it reaches along the way.
func LoadFile(path string) (*reader.Result, *avdl.Diagnostics) {
	src, err := os.ReadFile(path)
	if err != nil {
		diags := &avdl.Diagnostics{}
		diags.Error(avdl.SourceSpan{File: path}, "", "reading %s: %v", path, err)
		return nil, diags
	}
	l := NewFileLoader(filepath.Dir(path))
	result, diags := reader.Read(path, string(src), l)
	diags.Append(l.state.diags)
	return result, diags
}

// Resolve implements reader.Importer.
func (l *Loader) Resolve(kind, importPath string, span avdl.SourceSpan) ([]avdl.NamedSchema, map[string]*avdl.Message, []string, error) {
	resolved, err := l.resolve(l.dir, importPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if l.state.loading[resolved] {
		return nil, nil, nil, fmt.Errorf("import cycle detected at %q", resolved)
	}
	if c, ok := l.state.cache[resolved]; ok {
		return c.types, c.messages, c.order, nil
	}

	l.state.loading[resolved] = true
	defer delete(l.state.loading, resolved)

	src, err := l.read(resolved)
	if err != nil {
		return nil, nil, nil, err
	}

	var types []avdl.NamedSchema
	var messages map[string]*avdl.Message
	var order []string

	switch kind {
	case "idl":
		child := &Loader{state: l.state, dir: l.dirOf(resolved), read: l.read, resolve: l.resolve, dirOf: l.dirOf}
		result, diags := reader.Read(resolved, src, child)
		l.state.diags.Append(diags)
		if diags.HasFatal() {
			return nil, nil, nil, fmt.Errorf("import %q has fatal diagnostics", resolved)
		}
		if result.Protocol != nil {
			types = result.Protocol.Types()
			messages = result.Protocol.Messages()
			order = result.Protocol.MessageNames()
		} else {
			types = result.Types
		}
	case "protocol":
		p, err := ParseProtocolJSON(resolved, src)
		if err != nil {
			return nil, nil, nil, err
		}
		types, messages, order = p.Types(), p.Messages(), p.MessageNames()
	case "schema":
		types, err = ParseSchemataJSON(resolved, src)
		if err != nil {
			return nil, nil, nil, err
		}
	default:
		return nil, nil, nil, fmt.Errorf("unknown import kind %q", kind)
	}

	l.state.cache[resolved] = &cached{types: types, messages: messages, order: order}
	return types, messages, order, nil
}

func readFile(resolved string) (string, error) {
	b, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func resolveFilePath(dir, p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	return filepath.Clean(filepath.Join(dir, p)), nil
}

func httpRead(client *http.Client) func(string) (string, error) {
	return func(resolved string) (string, error) {
		resp, err := client.Get(resolved)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetching %s: status %s", resolved, resp.Status)
		}
		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(buf), nil
	}
}

func resolveHTTPPath(dir, p string) (string, error) {
	base, err := url.Parse(dir)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(p)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func httpDirOf(resolved string) string {
	u, err := url.Parse(resolved)
	if err != nil {
		return resolved
	}
	u.Path = path.Dir(u.Path)
	return u.String()
}
