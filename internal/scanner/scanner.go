// Package scanner discovers twig templates on disk and builds the template
// index.
//
// The scanner walks every template root in a fixed order: the view folders
// of the installed packages (namespaced "@Name/..."), the legacy resource
// folders of the packages (non-namespaced), and finally the project template
// root. Each discovered file is registered under its relative name and,
// for nested files, under its flattened basename. The flattened registration
// is marked deprecated unless the file lives inside a known theme folder.
package scanner

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/config"
	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/registry"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
)

// Template file suffixes.
const (
	TwigSuffix     = ".twig"
	HTMLTwigSuffix = ".html.twig"
)

// Package-relative template folders.
var (
	packageViewDirs     = []string{filepath.Join("Resources", "views"), "templates"}
	packageResourcesDir = filepath.Join("Resources", "contao", "templates")
)

// DirSource is a directory to walk.
type DirSource string

// FileRef is a single pre-filtered template file.
type FileRef struct {
	// Pathname is the location of the file on disk.
	Pathname string
	// RelativePath is the path of the file below its scan root, slash
	// separated. An empty value means the file sits directly in the root.
	RelativePath string
}

// FilesSource is a pre-filtered list of template files.
type FilesSource []FileRef

// TemplateFile is one enumerated template.
type TemplateFile struct {
	// Name is the basename, with the suffix stripped when requested.
	Name string
	// RelativeName is the path below the scan root, with the suffix stripped
	// when requested.
	RelativeName string
	// Candidate is the resolution target of the file.
	Candidate types.CandidatePath
}

// Nested reports whether the file lives in a subfolder of its scan root.
func (f TemplateFile) Nested() bool {
	return f.RelativeName != f.Name
}

// ResourceFinder yields the non-namespaced template pool contributed by
// installed packages.
type ResourceFinder interface {
	FindTemplates(ctx context.Context) ([]FileRef, error)
}

// TemplateScanner enumerates template files and builds indexes.
type TemplateScanner struct {
	templateRoot string
	pattern      string
	skipSuffixes []string
	packages     []types.Package
	themeFolders []string
	finder       ResourceFinder
	logger       logging.Logger
}

// Option configures a TemplateScanner.
type Option func(*TemplateScanner)

// WithResourceFinder replaces the default package resource finder.
func WithResourceFinder(finder ResourceFinder) Option {
	return func(s *TemplateScanner) {
		s.finder = finder
	}
}

// NewTemplateScanner creates a scanner for the configured project.
func NewTemplateScanner(cfg *config.Config, logger logging.Logger, opts ...Option) *TemplateScanner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	root := cfg.TemplateRoot()
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	folders := make([]string, 0, len(cfg.Themes))
	for _, theme := range cfg.Themes {
		if folder := types.NormalizeThemeFolder(theme.Folder); folder != "" {
			folders = append(folders, folder)
		}
	}

	s := &TemplateScanner{
		templateRoot: root,
		pattern:      cfg.Templates.Pattern,
		skipSuffixes: cfg.Templates.SkipSuffixes,
		packages:     cfg.Packages,
		themeFolders: folders,
		logger:       logger.WithComponent("scanner"),
	}
	s.finder = &PackageResourceFinder{packages: cfg.Packages, pattern: s.pattern}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TemplateRoot returns the absolute project template root.
func (s *TemplateScanner) TemplateRoot() string {
	return s.templateRoot
}

// TemplatesInPath enumerates the templates of one source. The source is a
// directory (string or DirSource), a pre-filtered list of files (FilesSource
// or []FileRef) or an iter.Seq[FileRef]. A missing directory yields no
// templates. Any other source is an invalid configuration.
func (s *TemplateScanner) TemplatesInPath(src any, namespace string, withExtension bool) ([]TemplateFile, error) {
	refs, err := s.collect(src)
	if err != nil {
		return nil, err
	}

	files := make([]TemplateFile, 0, len(refs))
	for _, ref := range refs {
		files = append(files, s.templateFile(ref, namespace, withExtension))
	}
	return files, nil
}

func (s *TemplateScanner) collect(src any) ([]FileRef, error) {
	switch v := src.(type) {
	case string:
		return s.walk(v)
	case DirSource:
		return s.walk(string(v))
	case FilesSource:
		return normalizeRefs(v), nil
	case []FileRef:
		return normalizeRefs(v), nil
	case iter.Seq[FileRef]:
		var refs []FileRef
		for ref := range v {
			refs = append(refs, ref)
		}
		return normalizeRefs(refs), nil
	default:
		return nil, twigerrors.NewInvalidConfigurationError(
			"template source must be a directory or a list of template files")
	}
}

func (s *TemplateScanner) walk(dir string) ([]FileRef, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, twigerrors.NewScanError(dir, err)
	}

	var refs []FileRef
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if ok, _ := doublestar.Match(s.pattern, rel); !ok {
			return nil
		}

		refs = append(refs, FileRef{Pathname: p, RelativePath: rel})
		return nil
	})
	if err != nil {
		return nil, twigerrors.NewScanError(dir, err)
	}

	return refs, nil
}

func normalizeRefs(refs []FileRef) []FileRef {
	out := make([]FileRef, 0, len(refs))
	for _, ref := range refs {
		if ref.Pathname == "" {
			continue
		}
		if abs, err := filepath.Abs(ref.Pathname); err == nil {
			ref.Pathname = abs
		}
		ref.RelativePath = strings.Trim(filepath.ToSlash(ref.RelativePath), "/")
		if ref.RelativePath == "" {
			ref.RelativePath = filepath.Base(ref.Pathname)
		}
		out = append(out, ref)
	}
	return out
}

func (s *TemplateScanner) templateFile(ref FileRef, namespace string, withExtension bool) TemplateFile {
	candidate := types.CandidatePath{Pathname: ref.Pathname}

	if namespace != "" {
		candidate.Path = types.NamespaceMarker + namespace + "/" + ref.RelativePath
		candidate.Package = namespace
	} else {
		candidate.Path = s.relativeToRoot(ref)
	}

	relativeName := ref.RelativePath
	name := path.Base(relativeName)
	if !withExtension {
		dir := path.Dir(relativeName)
		name = StripExtension(name)
		relativeName = name
		if dir != "." {
			relativeName = dir + "/" + name
		}
	}

	return TemplateFile{Name: name, RelativeName: relativeName, Candidate: candidate}
}

// relativeToRoot expresses a non-namespaced file relative to the project
// template root. Files outside of it keep their path below the scan root.
func (s *TemplateScanner) relativeToRoot(ref FileRef) string {
	rel, err := filepath.Rel(s.templateRoot, ref.Pathname)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ref.RelativePath
	}
	return filepath.ToSlash(rel)
}

// StripExtension removes the template suffix from a file name. ".html.twig"
// is stripped as a unit, anything else loses its last extension only.
func StripExtension(name string) string {
	if strings.HasSuffix(name, HTMLTwigSuffix) {
		return strings.TrimSuffix(name, HTMLTwigSuffix)
	}
	return strings.TrimSuffix(name, path.Ext(name))
}

// BuildIndex builds one index variant.
func (s *TemplateScanner) BuildIndex(ctx context.Context, variant types.Variant) (*types.Index, error) {
	indexes, err := s.BuildIndexes(ctx)
	if err != nil {
		return nil, err
	}
	return indexes[variant], nil
}

// BuildIndexes walks every template root once and derives both index
// variants from the same set of files. Unreadable roots are logged and
// skipped.
func (s *TemplateScanner) BuildIndexes(ctx context.Context) (map[types.Variant]*types.Index, error) {
	perf := logging.StartOperation(s.logger, "scanner.BuildIndexes")

	groups, err := s.collectGroups(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	indexes := make(map[types.Variant]*types.Index, 2)
	for _, variant := range types.Variants() {
		reg := registry.NewTemplateRegistry()
		root := registry.NewTemplateRegistry()
		withExtension := variant == types.VariantWithExtension
		for _, group := range groups {
			for _, ref := range group.refs {
				file := s.templateFile(ref, group.namespace, withExtension)
				file.Candidate.Resource = group.resource
				s.register(root, file)
			}
			s.logger.Debug(ctx, "Indexed template root",
				"root", group.root, "variant", variant.String(), "templates", root.Count())
			reg.Merge(root.Index())
			root.Reset()
		}
		indexes[variant] = reg.Index()
	}

	perf.End(ctx,
		"roots", len(groups),
		"templates", indexes[types.VariantWithoutExtension].Len(),
	)
	return indexes, nil
}

type sourceGroup struct {
	root      string
	namespace string
	resource  bool
	refs      []FileRef
}

// collectGroups enumerates every template root in builder order.
func (s *TemplateScanner) collectGroups(ctx context.Context) ([]sourceGroup, error) {
	var groups []sourceGroup

	add := func(root, namespace string, resource bool, src any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		refs, err := s.collect(src)
		if err != nil {
			if twigerrors.IsInvalidConfiguration(err) {
				return err
			}
			s.logger.Warn(ctx, err, "Skipping unreadable template root", "root", root)
			return nil
		}
		groups = append(groups, sourceGroup{root: root, namespace: namespace, resource: resource, refs: refs})
		return nil
	}

	for _, pkg := range s.packages {
		for _, dir := range packageViewDirs {
			root := filepath.Join(pkg.Path, dir)
			if err := add(root, pkg.Namespace(), false, DirSource(root)); err != nil {
				return nil, err
			}
		}
	}

	if s.finder != nil {
		refs, err := s.finder.FindTemplates(ctx)
		if err != nil {
			s.logger.Warn(ctx, err, "Skipping package template resources")
		} else if err := add("resources", "", true, FilesSource(refs)); err != nil {
			return nil, err
		}
	}

	if err := add(s.templateRoot, "", false, DirSource(s.templateRoot)); err != nil {
		return nil, err
	}

	return groups, nil
}

func (s *TemplateScanner) register(reg *registry.TemplateRegistry, file TemplateFile) {
	if s.skipped(file.Candidate.Pathname) {
		return
	}

	reg.Register(file.RelativeName, file.Candidate)

	if file.Nested() {
		flattened := file.Candidate
		flattened.Deprecated = !s.inThemeFolder(file.Candidate)
		reg.Register(file.Name, flattened)
	}
}

func (s *TemplateScanner) skipped(pathname string) bool {
	base := filepath.Base(pathname)
	for _, suffix := range s.skipSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// inThemeFolder reports whether a project template sits directly inside one
// of the known theme folders.
func (s *TemplateScanner) inThemeFolder(candidate types.CandidatePath) bool {
	if candidate.IsNamespaced() {
		return false
	}
	dir := path.Dir(candidate.Path)
	for _, folder := range s.themeFolders {
		if commonBasePath(dir, folder) == folder {
			return true
		}
	}
	return false
}

// commonBasePath returns the longest leading run of path segments shared by a
// and b.
func commonBasePath(a, b string) string {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	return strings.Join(as[:n], "/")
}

// PackageResourceFinder locates the legacy template folders of installed
// packages.
type PackageResourceFinder struct {
	packages []types.Package
	pattern  string
}

// NewPackageResourceFinder creates a finder over the given packages.
func NewPackageResourceFinder(packages []types.Package, pattern string) *PackageResourceFinder {
	return &PackageResourceFinder{packages: packages, pattern: pattern}
}

// FindTemplates returns the template files below every package's
// Resources/contao/templates folder, in declared package order.
func (f *PackageResourceFinder) FindTemplates(ctx context.Context) ([]FileRef, error) {
	var refs []FileRef
	for _, pkg := range f.packages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		root := filepath.Join(pkg.Path, packageResourcesDir)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}

		fsys := os.DirFS(root)
		matches, err := doublestar.Glob(fsys, f.pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, twigerrors.NewScanError(root, err)
		}
		for _, match := range matches {
			refs = append(refs, FileRef{
				Pathname:     filepath.Join(root, filepath.FromSlash(match)),
				RelativePath: match,
			})
		}
	}
	return refs, nil
}
