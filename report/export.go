package report

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/input"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteTrajectoryCSV 以处理后数据的导出格式写出轨迹
// 功能：第1行为名称，第2行为空行，第3行为表头，之后每个采样点一行
// 说明：列顺序为dV, dX, dT, dT_vtti, v_target, v_following, a_target, a_following，可被processed格式读回
func WriteTrajectoryCSV(w io.Writer, name string, traj *trajectory.Trajectory) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(name + "\n\n" + input.ProcessedHeader + "\n")
	fields := make([]string, 8)
	for i := range traj.Len() {
		s := traj.At(i)
		for j, v := range []float64{s.DV, s.Spacing, s.Time, s.Stamp, s.VLead, s.VFollow, s.ALead, s.AFollow} {
			fields[j] = formatFloat(v)
		}
		bw.WriteString(strings.Join(fields, ","))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
