package config

// InputPath 指定MongoDB集合的配置
// 功能：定义数据库集合路径以及本地缓存
// 说明：缓存为protobuf序列化文件，总是先试图从缓存中加载
type InputPath struct {
	DB        string `yaml:"db"`                   // 数据库名
	Col       string `yaml:"col"`                  // 集合名
	Cache     string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.pb
	OnlyCache bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 算法说明：
// 1. 如果指定了缓存路径，直接返回
// 2. 否则使用默认命名规则：{数据库名}.{集合名}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Extraction 跟车片段提取配置
// 说明：阈值为0时使用默认值
type Extraction struct {
	MinDuration float64 `yaml:"min_duration,omitempty"` // 片段最短时长（秒），默认60
	MaxDistance float64 `yaml:"max_distance,omitempty"` // 与前车的最大距离（米），默认80
	MinSpeed    float64 `yaml:"min_speed,omitempty"`    // 最低车速（千米/时），默认1
	GapMs       float64 `yaml:"gap_ms,omitempty"`       // 同一前车数据点的最大时间间隔（毫秒），默认3000
	Smoothing   int     `yaml:"smoothing,omitempty"`    // 相对速度滑动平均窗口，默认16，-1表示不平滑
	Kalman      bool    `yaml:"kalman,omitempty"`       // 是否再做一次卡尔曼滤波
}

// Input 输入数据配置
// 功能：定义标定用轨迹的来源
// 说明：format可选synthetic、fhwa_irv、processed、nds、mongo
type Input struct {
	Format     string     `yaml:"format"`              // 数据格式
	File       string     `yaml:"file,omitempty"`      // 文件路径
	Files      []string   `yaml:"files,omitempty"`     // 文件路径列表，多个文件的轨迹合并
	Event      string     `yaml:"event,omitempty"`     // nds格式的事件编号，为空则使用文件名
	Episode    string     `yaml:"episode,omitempty"`   // 选择的跟车片段编号，为空则合并全部片段
	Radar      string     `yaml:"stac,omitempty"`      // nds格式的STAC雷达数据文件，替换原始日志中的相对速度
	URI        string     `yaml:"uri,omitempty"`       // MongoDB连接字符串
	Episodes   *InputPath `yaml:"episodes,omitempty"`  // 跟车片段集合（mongo格式）
	Extraction Extraction `yaml:"extraction"`          // 跟车片段提取
	Synthetic  *Synthetic `yaml:"synthetic,omitempty"` // 未指定文件时用Gipps模型生成数据
}

// Synthetic 合成数据配置
type Synthetic struct {
	Params    []float64 `yaml:"params"`     // [t_rxn, V_des, a_des, d_des, d_lead, g_min]
	Samples   int       `yaml:"samples"`    // 采样点个数
	LeadSpeed float64   `yaml:"lead_speed"` // 前车速度（米/秒）
	VFollow   float64   `yaml:"v_follow"`   // 跟驰车初始速度（米/秒）
	Spacing   float64   `yaml:"spacing"`    // 初始车距（米）
}

// GA 遗传算法配置
// 功能：每个参数都是列表，所有组合构成测试网格，每个组合重复runs次
type GA struct {
	Runs           int       `yaml:"runs,omitempty"`            // 每个参数组合的重复次数，默认1
	Seed           uint64    `yaml:"seed,omitempty"`            // 基础随机种子，第n个测试使用seed+n
	PopSize        []int     `yaml:"pop_size,omitempty"`        // 种群规模，默认[10]
	Degrade        []int     `yaml:"degrade,omitempty"`         // 退化阈值，默认[2]
	Restart        []int     `yaml:"restart,omitempty"`         // 重启阈值，默认[1]
	Retain         []float64 `yaml:"retain,omitempty"`          // 精英比例，默认[0.2]
	RandomSelect   []float64 `yaml:"random_select,omitempty"`   // 随机选择概率，默认[0.2]
	Mutate         []float64 `yaml:"mutate,omitempty"`          // 变异概率，默认[0.001]
	TimeoutMinutes float64   `yaml:"timeout_minutes,omitempty"` // 单次运行超时（分钟），0表示不限制
}

// Output 输出配置
type Output struct {
	Dir    string     `yaml:"dir,omitempty"`    // 输出目录，默认output
	SQLite string     `yaml:"sqlite,omitempty"` // 运行汇总SQLite数据库，为空则不写
	URI    string     `yaml:"uri,omitempty"`    // MongoDB连接字符串
	Runs   *InputPath `yaml:"runs,omitempty"`   // 运行汇总集合，为空则不写MongoDB
	Plot   bool       `yaml:"plot,omitempty"`   // 输出种群得分曲线与轨迹图
	Export bool       `yaml:"export,omitempty"` // 导出处理后的轨迹CSV
}

// Config YAML配置文件的根结构
type Config struct {
	Input  Input  `yaml:"input"`  // 输入
	GA     GA     `yaml:"ga"`     // 遗传算法
	Output Output `yaml:"output"` // 输出
}
