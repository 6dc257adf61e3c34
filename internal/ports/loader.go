package ports

import "context"

// Loader fetches and decodes the asset referenced by src. src is either an
// inline data URI or an external reference (URL or path).
type Loader interface {
	Load(ctx context.Context, src string) (Asset, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (Asset, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, src string) (Asset, error) {
	return f(ctx, src)
}
