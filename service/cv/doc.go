// Package cv holds the OpenCV (gocv) backed implementations of the video,
// inference and display services. It is the only package that needs cgo.
package cv
