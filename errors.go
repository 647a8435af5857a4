package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrDRMProtected indicates the ePub file is protected by DRM
	// (e.g., Adobe ADEPT, Apple FairPlay, Readium LCP) and cannot be read.
	ErrDRMProtected = errors.New("epub: file is DRM protected")

	// ErrInvalidEPub indicates the file is not a valid ePub
	// (e.g., missing container.xml and no .opf file found).
	ErrInvalidEPub = errors.New("epub: invalid ePub file")
)
