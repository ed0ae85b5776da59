package model

import "golang.org/x/xerrors"

// Startup failures. ErrModelLoad halts the process; ErrMediaAcquisition only
// keeps the pipeline from detecting.
var (
	ErrModelLoad        = xerrors.New("model load failed")
	ErrMediaAcquisition = xerrors.New("media acquisition failed")
)

// Recoverable failures. None of them stop the tick loop.
var (
	ErrInferenceTick = xerrors.New("inference tick failed")
	ErrIntervalFetch = xerrors.New("interval fetch failed")
	ErrIntervalSet   = xerrors.New("interval set failed")
	ErrUpload        = xerrors.New("upload failed")
)

var ErrNotFound = xerrors.New("not found")
