package episode

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var ErrMissingColumn = errors.New("episode: missing column")

// 原始数据的列名
const (
	colStamp = "vtti.timestamp"
	colSpeed = "vtti.speed_network"
	colAccel = "vtti.accel_x"
)

func trackColumn(track int, field string) string {
	return fmt.Sprintf("track%d_%s", track+1, field)
}

// parseValue 解析数值，空白或无法解析时为NaN
func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ReadPoints 读取原始数据CSV
// 功能：按表头列名解析每一行为DataPoint
// 参数：r-CSV输入，第一行为表头
// 返回：数据点列表；缺少时间戳或车速列时返回ErrMissingColumn
// 说明：缺失的雷达或加速度列视为全部为NaN
func ReadPoints(r io.Reader) ([]DataPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("episode: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{colStamp, colSpeed} {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	var points []DataPoint
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("episode: line %d: %w", line, err)
		}
		get := func(name string) float64 {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return math.NaN()
			}
			return parseValue(record[i])
		}
		p := DataPoint{
			Stamp:  get(colStamp),
			Speed:  get(colSpeed),
			AccelX: get(colAccel),
		}
		for t := range NumTracks {
			p.Tracks[t] = Track{
				TargetID: get(trackColumn(t, "target_id")),
				IsLead:   get(trackColumn(t, "is_lead_vehicle")),
				XPos:     get(trackColumn(t, "x_pos_processed")),
				XVel:     get(trackColumn(t, "x_vel_processed")),
				XAcc:     get(trackColumn(t, "x_acc_estimated")),
			}
		}
		points = append(points, p)
	}
	return points, nil
}
