package dungeon

// Seed 地图生成的唯一随机来源（32 位整数）
type Seed int32

const (
	lcgMul     = 9301
	lcgInc     = 49297
	lcgModulus = 233280
)

// LCG 线性同余随机流：所有客户端用同一种子得到完全相同的序列
type LCG struct {
	state int64
	draws int
}

// NewLCG 用种子初始化随机流
func NewLCG(seed Seed) *LCG {
	return &LCG{state: int64(seed)}
}

// Next 推进一步，返回 [0,1) 区间的值
func (r *LCG) Next() float64 {
	r.state = (r.state*lcgMul + lcgInc) % lcgModulus
	if r.state < 0 {
		// 负种子折回正区间，否则下标会变成负数
		r.state += lcgModulus
	}
	r.draws++
	return float64(r.state) / lcgModulus
}

// Intn 返回 [0,n) 的下标：floor(Next()*n)
func (r *LCG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	i := int(r.Next() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Draws 已消耗的随机数个数（测试与排查用）
func (r *LCG) Draws() int { return r.draws }
