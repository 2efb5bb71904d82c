package storage

import (
	"fmt"
	"sync"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

var (
	managerMu   sync.RWMutex
	disks       = map[string]Disk{}
	defaultDisk = "local"
)

// Connect boots the local disk and, when S3_BUCKET is set, the s3 disk.
// STORAGE_DISK picks the default; an unavailable s3 default falls back to local.
func Connect() {
	local := NewLocalDisk(config.StorageLocalRoot(), config.StorageURL())
	RegisterDisk("local", local)

	name := config.StorageDefault()
	if config.StorageS3Bucket() != "" {
		d, err := NewS3Disk(S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
		if err != nil {
			logger.Warn("storage: s3 disk disabled", "error", err)
		} else {
			RegisterDisk("s3", d)
		}
	}

	managerMu.Lock()
	defer managerMu.Unlock()
	if _, ok := disks[name]; !ok {
		logger.Warn("storage: default disk unavailable, using local", "disk", name)
		name = "local"
	}
	defaultDisk = name
}

// Use returns the named disk.
func Use(name string) (Disk, error) {
	managerMu.RLock()
	defer managerMu.RUnlock()
	d, ok := disks[name]
	if !ok {
		return nil, fmt.Errorf("storage: disk %q is not configured", name)
	}
	return d, nil
}

// Default returns the STORAGE_DISK disk, or nil before Connect/RegisterDisk.
func Default() Disk {
	managerMu.RLock()
	defer managerMu.RUnlock()
	return disks[defaultDisk]
}

// RegisterDisk plugs in a Disk implementation at boot time.
func RegisterDisk(name string, d Disk) {
	managerMu.Lock()
	disks[name] = d
	managerMu.Unlock()
}

// SetDefault selects which registered disk Default returns.
func SetDefault(name string) {
	managerMu.Lock()
	defaultDisk = name
	managerMu.Unlock()
}
