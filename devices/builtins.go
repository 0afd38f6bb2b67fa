package devices

import (
	"context"

	"github.com/brettbedarf/filenode/filesystem"
)

type BuiltInDeviceType = string

const (
	LocalDeviceType  BuiltInDeviceType = "local"
	MemoryDeviceType BuiltInDeviceType = "memory"
	S3DeviceType     BuiltInDeviceType = "s3"
	HTTPDeviceType   BuiltInDeviceType = "http"
)

// RegisterBuiltins registers all built-in devices by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, types ...BuiltInDeviceType) {
	if len(types) == 0 {
		types = append(types, LocalDeviceType, MemoryDeviceType, S3DeviceType, HTTPDeviceType)
	}

	for _, key := range types {
		switch key {
		case LocalDeviceType:
			r.Register(LocalDeviceType, func(opts Options) (filesystem.Device, error) {
				return NewLocalDevice(opts.String("base", "")), nil
			})
		case MemoryDeviceType:
			r.Register(MemoryDeviceType, func(opts Options) (filesystem.Device, error) {
				return NewMemoryDevice(opts.String("name", MemoryDeviceType)), nil
			})
		case S3DeviceType:
			r.Register(S3DeviceType, func(opts Options) (filesystem.Device, error) {
				return NewS3Device(context.Background(), S3Options{
					Bucket:    opts.String("bucket", ""),
					Prefix:    opts.String("prefix", ""),
					Region:    opts.String("region", "us-east-1"),
					Endpoint:  opts.String("endpoint", ""),
					AccessKey: opts.String("access_key", ""),
					SecretKey: opts.String("secret_key", ""),
				})
			})
		case HTTPDeviceType:
			r.Register(HTTPDeviceType, func(opts Options) (filesystem.Device, error) {
				return NewHTTPDevice(opts.String("url", ""), opts.StringMap("headers"))
			})
		}
	}
}

// Default returns a registry with every built-in device registered
func Default() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}
