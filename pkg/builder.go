package pkg

import "fmt"

// Builder assembles a Package, deferring validation to Build so a caller
// can set fields in any order. It does not sign; see the signing package.
type Builder struct {
	pkg Package
	set struct {
		name, version, archiveURL, maintainer, algorithm bool
	}
}

// NewBuilder returns an empty Builder with Status defaulted to DefaultStatus.
func NewBuilder() *Builder {
	b := &Builder{}
	b.pkg.Status = DefaultStatus
	return b
}

func (b *Builder) Name(name string) *Builder {
	b.pkg.Name = name
	b.set.name = true
	return b
}

func (b *Builder) Version(version string) *Builder {
	b.pkg.Version = version
	b.set.version = true
	return b
}

func (b *Builder) Status(status Status) *Builder {
	b.pkg.Status = status
	return b
}

func (b *Builder) Maintainer(maintainer Maintainer) *Builder {
	b.pkg.Maintainer = maintainer
	b.set.maintainer = true
	return b
}

func (b *Builder) ArchiveURL(url string) *Builder {
	b.pkg.ArchiveURL = url
	b.set.archiveURL = true
	return b
}

func (b *Builder) Integrity(algorithm string, archiveHash []byte) *Builder {
	b.pkg.Integrity = Integrity{Algorithm: algorithm, ArchiveHash: archiveHash}
	b.set.algorithm = true
	return b
}

// Build validates that every required field was set and returns the
// finished, unsigned Package.
func (b *Builder) Build() (*Package, error) {
	if !b.set.name {
		return nil, fmt.Errorf("%w: name is required", ErrMalformedStructure)
	}
	if !b.set.version {
		return nil, fmt.Errorf("%w: version is required", ErrMalformedStructure)
	}
	if !b.set.archiveURL {
		return nil, fmt.Errorf("%w: archive_url is required", ErrMalformedStructure)
	}
	if !b.set.maintainer {
		return nil, fmt.Errorf("%w: maintainer is required", ErrMalformedStructure)
	}
	if !b.set.algorithm {
		return nil, fmt.Errorf("%w: integrity is required", ErrMalformedStructure)
	}
	if !b.pkg.Status.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, uint8(b.pkg.Status))
	}
	return b.pkg.Clone(), nil
}
