package trajectory

import (
	"context"
	"fmt"
)

// StaticSource 内存中的轨迹数据源
type StaticSource struct {
	traj *Trajectory
}

// Static 把已加载的轨迹包装成数据源
func Static(t *Trajectory) *StaticSource {
	return &StaticSource{traj: t}
}

// Trajectory 返回轨迹
func (s *StaticSource) Trajectory(ctx context.Context) (*Trajectory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.traj == nil {
		return nil, ErrEmpty
	}
	return s.traj, nil
}

// String 数据源描述
func (s *StaticSource) String() string {
	if s.traj == nil {
		return "static(empty)"
	}
	return fmt.Sprintf("static(%d samples)", s.traj.Len())
}
