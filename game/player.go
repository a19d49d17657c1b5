package game

import (
	"math"

	"dungeonsync/dungeon"
	"dungeonsync/sim"
)

// Player 本地玩家，由本端权威维护
type Player struct {
	ID, Name          string
	X, Y              float64
	Angle             float64
	Health, MaxHealth float64
	Weapon            string
	HasKey            bool
	Coins             int
	lastShot          int64
}

// Intent 一帧的输入意图，由渲染/输入端设置，在 tick 中解释
type Intent struct {
	// MoveX/MoveY 方向分量，取值 [-1, 1]
	MoveX, MoveY float64
	Aim          float64
	Fire         bool
	// Exit 显式穿门；走到门口也会触发
	Exit     dungeon.Direction
	WantExit bool
}

type weapon struct {
	damage float64
	speed  float64
	spread []float64
}

var weapons = map[string]weapon{
	"pistol":  {damage: 15, speed: 10, spread: []float64{0}},
	"rifle":   {damage: 22, speed: 13, spread: []float64{0}},
	"shotgun": {damage: 10, speed: 9, spread: []float64{-0.2, 0, 0.2}},
}

// 枪械房随机给出的武器
var gunBoxWeapons = []string{"rifle", "shotgun"}

func weaponOf(name string) weapon {
	if w, ok := weapons[name]; ok {
		return w
	}
	return weapons["pistol"]
}

// shots 按当前武器生成本帧子弹
func (p *Player) shots() []sim.Projectile {
	w := weaponOf(p.Weapon)
	out := make([]sim.Projectile, 0, len(w.spread))
	for _, off := range w.spread {
		a := p.Angle + off
		out = append(out, sim.Projectile{
			X: p.X, Y: p.Y,
			VX: math.Cos(a) * w.speed, VY: math.Sin(a) * w.speed,
			Damage: w.damage, Size: 6, FromPlayer: true,
		})
	}
	return out
}

// move 按意图移动并裁剪到房间内
func (p *Player) move(in Intent, speed, radius, dt float64) {
	dx, dy := in.MoveX, in.MoveY
	if l := math.Hypot(dx, dy); l > 1 {
		dx, dy = dx/l, dy/l
	}
	p.X = math.Max(radius, math.Min(sim.RoomWidth-radius, p.X+dx*speed*dt))
	p.Y = math.Max(radius, math.Min(sim.RoomHeight-radius, p.Y+dy*speed*dt))
	p.Angle = in.Aim
}

// DoorWidth 门洞宽度
const DoorWidth = 80.0

// doorAt 玩家贴着某面墙且在门洞范围内时返回该方向
func doorAt(x, y, radius float64, doors dungeon.Doors) (dungeon.Direction, bool) {
	const reach = 2
	inH := math.Abs(x-sim.RoomWidth/2) < DoorWidth/2
	inV := math.Abs(y-sim.RoomHeight/2) < DoorWidth/2
	switch {
	case doors.North && inH && y <= radius+reach:
		return dungeon.North, true
	case doors.South && inH && y >= sim.RoomHeight-radius-reach:
		return dungeon.South, true
	case doors.West && inV && x <= radius+reach:
		return dungeon.West, true
	case doors.East && inV && x >= sim.RoomWidth-radius-reach:
		return dungeon.East, true
	}
	return 0, false
}

// arrival 从 dir 方向的门出去后，在下一个房间对侧门口出现的位置
func arrival(dir dungeon.Direction) (float64, float64) {
	const inset = 60
	switch dir {
	case dungeon.North:
		return sim.RoomWidth / 2, sim.RoomHeight - inset
	case dungeon.South:
		return sim.RoomWidth / 2, inset
	case dungeon.East:
		return inset, sim.RoomHeight / 2
	case dungeon.West:
		return sim.RoomWidth - inset, sim.RoomHeight / 2
	}
	return sim.RoomWidth / 2, sim.RoomHeight / 2
}
