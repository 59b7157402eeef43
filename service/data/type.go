package data

import "github.com/khaledhikmat/snap-go/model"

type IService interface {
	NewError(err interface{}) error
	NewCaptureStats(stats model.CaptureStats) error
	NewHandlerStats(stats model.HandlerStats) error
	NewDispatcherStats(stats model.DispatcherStats) error
}
