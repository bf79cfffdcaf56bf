package fusion

import (
	"image"
	"sync"

	"go.viam.com/rdk/pointcloud"
)

// StreamCache holds the most recent value of each sensor stream. Each field
// is overwritten independently by its producer: last write wins, with no
// merging and no timestamp alignment across streams. Producers and the tick
// loop run on separate goroutines, so every access takes the mutex.
type StreamCache struct {
	mu    sync.Mutex
	color image.Image
	depth *DepthMap
	cloud pointcloud.PointCloud
}

// Snapshot is the cache state read at the start of a tick. Each field is the
// most recent value at read time, but the three may originate from different
// physical frames when producer rates differ; no timestamp alignment is
// attempted.
type Snapshot struct {
	Color image.Image
	Depth *DepthMap
	Cloud pointcloud.PointCloud
}

// Ready reports whether enough data exists to run a fusion pass. The point
// cloud is cached but not required.
func (s Snapshot) Ready() bool {
	return s.Color != nil && s.Depth != nil
}

// UpdateColor replaces the cached color frame.
func (c *StreamCache) UpdateColor(img image.Image) {
	c.mu.Lock()
	c.color = img
	c.mu.Unlock()
}

// UpdateDepth replaces the cached depth map.
func (c *StreamCache) UpdateDepth(dm *DepthMap) {
	c.mu.Lock()
	c.depth = dm
	c.mu.Unlock()
}

// UpdateCloud replaces the cached point cloud.
func (c *StreamCache) UpdateCloud(pc pointcloud.PointCloud) {
	c.mu.Lock()
	c.cloud = pc
	c.mu.Unlock()
}

// Snapshot reads all three fields at once.
func (c *StreamCache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Color: c.color, Depth: c.depth, Cloud: c.cloud}
}
