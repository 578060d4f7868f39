// Package locator resolves template names to concrete template paths.
//
// A name may be provided by several layers at once: installed packages
// (namespaced "@Pkg/..." paths), the project template root and theme folders
// below it. Resolve picks one candidate with the following precedence:
//
//  1. on front-end requests, the first candidate inside the active theme folder
//  2. the first non-namespaced candidate (project overrides)
//  3. the last candidate, so packages scanned later override earlier ones
package locator

import (
	"context"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/heimrichhannot/contao-twig-support-bundle/internal/cache"
	twigerrors "github.com/heimrichhannot/contao-twig-support-bundle/internal/errors"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/logging"
	"github.com/heimrichhannot/contao-twig-support-bundle/internal/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// GlobalLabel marks project-level candidates in group labels.
const GlobalLabel = "global"

// RequestContext carries the request state that influences resolution.
type RequestContext struct {
	// Frontend is true for site-visitor requests. Theme overrides only apply
	// to front-end requests.
	Frontend bool
	// ThemeFolder is the template folder of the current page's theme, as
	// stored in the theme settings ("templates/customtheme").
	ThemeFolder string
}

// IndexSource provides template indexes.
type IndexSource interface {
	Get(ctx context.Context, variant types.Variant, opts ...cache.GetOption) (*types.Index, error)
}

// Option modifies a single locator query.
type Option func(*queryOptions)

type queryOptions struct {
	disableCache  bool
	withExtension bool
}

// WithDisableCache rebuilds the index for this query instead of using the
// cache or the memoized copy.
func WithDisableCache() Option {
	return func(o *queryOptions) {
		o.disableCache = true
	}
}

// WithExtension queries names including their file suffix.
func WithExtension() Option {
	return func(o *queryOptions) {
		o.withExtension = true
	}
}

// GroupOption is one entry of a template selection list.
type GroupOption struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
}

// TemplateLocator resolves template names. A locator memoizes the indexes it
// loads, so one instance should serve one request scope.
type TemplateLocator struct {
	source IndexSource
	themes []types.Theme
	logger logging.Logger

	mutex sync.Mutex
	memo  map[types.Variant]*types.Index
}

// NewTemplateLocator creates a locator over an index source. Themes are the
// known site themes used to label FindByPrefix results.
func NewTemplateLocator(source IndexSource, themes []types.Theme, logger logging.Logger) *TemplateLocator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TemplateLocator{
		source: source,
		themes: themes,
		logger: logger.WithComponent("locator"),
		memo:   make(map[types.Variant]*types.Index),
	}
}

// Scope returns a locator sharing the index source but starting with an
// empty memo. Long-running processes create one per request.
func (l *TemplateLocator) Scope() *TemplateLocator {
	return NewTemplateLocator(l.source, l.themes, l.logger)
}

// Templates returns the index of a variant, loading it once per locator.
func (l *TemplateLocator) Templates(ctx context.Context, variant types.Variant, opts ...Option) (*types.Index, error) {
	o := applyOptions(opts)

	if o.disableCache {
		return l.source.Get(ctx, variant, cache.WithoutCache())
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if idx, ok := l.memo[variant]; ok {
		return idx, nil
	}
	idx, err := l.source.Get(ctx, variant)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		idx = types.NewIndex()
	}
	l.memo[variant] = idx
	return idx, nil
}

// Resolve returns the winning candidate of a template name. Directory
// components of the name are ignored.
func (l *TemplateLocator) Resolve(ctx context.Context, name string, rc RequestContext, opts ...Option) (types.Resolution, error) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	// An insecure theme folder fails even for unknown names.
	themeFolder := ""
	if rc.Frontend && rc.ThemeFolder != "" {
		if IsInsecurePath(rc.ThemeFolder) {
			return types.Resolution{}, twigerrors.NewInsecurePathError(rc.ThemeFolder)
		}
		themeFolder = types.NormalizeThemeFolder(rc.ThemeFolder)
	}

	entry, err := l.lookup(ctx, name, opts)
	if err != nil {
		return types.Resolution{}, err
	}

	candidate := SelectCandidate(entry.Paths, themeFolder)
	return types.NewResolution(name, candidate), nil
}

func (l *TemplateLocator) lookup(ctx context.Context, name string, opts []Option) (*types.TemplateEntry, error) {
	idx, err := l.Templates(ctx, types.VariantWithoutExtension, opts...)
	if err != nil {
		return nil, err
	}
	if entry, ok := idx.Get(name); ok {
		return entry, nil
	}

	idx, err = l.Templates(ctx, types.VariantWithExtension, opts...)
	if err != nil {
		return nil, err
	}
	if entry, ok := idx.Get(name); ok {
		return entry, nil
	}

	return nil, twigerrors.NewTemplateNotFoundError(name)
}

// SelectCandidate applies the override precedence to a non-empty candidate
// list. themeFolder is the normalized active theme folder or "".
func SelectCandidate(paths []types.CandidatePath, themeFolder string) types.CandidatePath {
	if themeFolder != "" {
		prefix := themeFolder + "/"
		for _, c := range paths {
			if strings.HasPrefix(c.Path, prefix) {
				return c
			}
		}
	}

	// Project templates come before package resource folders, matching the
	// lookup order of the global loader roots.
	var resource *types.CandidatePath
	for i, c := range paths {
		if c.IsNamespaced() {
			continue
		}
		if !c.Resource {
			return c
		}
		if resource == nil {
			resource = &paths[i]
		}
	}
	if resource != nil {
		return *resource
	}

	return paths[len(paths)-1]
}

// IsInsecurePath reports whether a theme folder value could escape the
// template root.
func IsInsecurePath(p string) bool {
	if strings.ContainsAny(p, "\x00\\") {
		return true
	}
	if strings.HasPrefix(p, "/") {
		return true
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}

// PrefixedFiles returns the names starting with prefix followed by "_" or
// the end of the name, in index order. A prefix that already ends in "_" or
// ")" is used as given.
func (l *TemplateLocator) PrefixedFiles(ctx context.Context, prefix string, opts ...Option) ([]string, error) {
	o := applyOptions(opts)
	variant := types.VariantWithoutExtension
	if o.withExtension {
		variant = types.VariantWithExtension
	}

	re, err := prefixPattern(prefix)
	if err != nil {
		return nil, twigerrors.NewInvalidConfigurationError("invalid template prefix " + prefix).WithContext("cause", err.Error())
	}

	idx, err := l.Templates(ctx, variant, opts...)
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0)
	for _, name := range idx.Names {
		if re.MatchString(name) {
			matches = append(matches, name)
		}
	}
	return matches, nil
}

func prefixPattern(prefix string) (*regexp.Regexp, error) {
	if strings.TrimRight(prefix, "_)") == prefix {
		prefix = regexp.QuoteMeta(prefix) + "($|_)"
	}
	return regexp.Compile("^" + prefix)
}

// FindByPrefix groups the templates of one or more prefixes for a selection
// list. Every option is labelled with the layers providing it, for example
// "form_text (global, Dark, @Acme)".
func (l *TemplateLocator) FindByPrefix(ctx context.Context, prefixes []string, opts ...Option) ([]GroupOption, error) {
	var names []string
	for _, prefix := range prefixes {
		matches, err := l.PrefixedFiles(ctx, prefix, opts...)
		if err != nil {
			return nil, err
		}
		names = append(names, matches...)
	}

	variant := types.VariantWithoutExtension
	if applyOptions(opts).withExtension {
		variant = types.VariantWithExtension
	}
	idx, err := l.Templates(ctx, variant, opts...)
	if err != nil {
		return nil, err
	}

	themes := l.sortedThemes()
	options := make([]GroupOption, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		entry, ok := idx.Get(name)
		if !ok {
			continue
		}
		seen[name] = struct{}{}
		options = append(options, GroupOption{
			Name:  name,
			Label: name + " (" + groupLabel(entry.Paths, themes) + ")",
		})
	}
	return options, nil
}

type normalizedTheme struct {
	name   string
	folder string
}

// sortedThemes returns the known themes with normalized folders, collated by
// name.
func (l *TemplateLocator) sortedThemes() []normalizedTheme {
	names := make([]string, 0, len(l.themes))
	byName := make(map[string][]string, len(l.themes))
	for _, theme := range l.themes {
		folder := types.NormalizeThemeFolder(theme.Folder)
		if folder == "" {
			continue
		}
		if _, ok := byName[theme.Name]; !ok {
			names = append(names, theme.Name)
		}
		byName[theme.Name] = append(byName[theme.Name], folder)
	}

	collate.New(language.Und, collate.IgnoreCase).SortStrings(names)

	themes := make([]normalizedTheme, 0, len(l.themes))
	for _, name := range names {
		for _, folder := range byName[name] {
			themes = append(themes, normalizedTheme{name: name, folder: folder})
		}
	}
	return themes
}

// groupLabel classifies every candidate as bundle, global or theme and joins
// the layers in that display order: global, themes, bundles.
func groupLabel(paths []types.CandidatePath, themes []normalizedTheme) string {
	var (
		global  bool
		inTheme = make(map[string]bool)
		bundles []string
		seen    = make(map[string]struct{})
	)

	for _, c := range paths {
		if c.IsNamespaced() {
			ns := c.Namespace()
			if _, dup := seen[ns]; !dup {
				seen[ns] = struct{}{}
				bundles = append(bundles, ns)
			}
			continue
		}

		matched := false
		if strings.Contains(c.Path, "/") {
			for _, theme := range themes {
				if strings.HasPrefix(c.Path, theme.folder+"/") {
					inTheme[theme.name] = true
					matched = true
				}
			}
		}
		if !matched {
			global = true
		}
	}

	parts := make([]string, 0, 1+len(inTheme)+len(bundles))
	if global {
		parts = append(parts, GlobalLabel)
	}
	added := make(map[string]struct{}, len(inTheme))
	for _, theme := range themes {
		if _, done := added[theme.name]; done || !inTheme[theme.name] {
			continue
		}
		added[theme.name] = struct{}{}
		parts = append(parts, theme.name)
	}
	parts = append(parts, bundles...)

	return strings.Join(parts, ", ")
}

func applyOptions(opts []Option) queryOptions {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
