package sim

// ResolvePlayerHits 玩家子弹与怪物的碰撞：命中的子弹被移除
// damage=false 时只消耗子弹不扣血（跟随端的本地表现，血量以权威端为准）
func ResolvePlayerHits(st *ChamberState, damage bool) (killed int) {
	out := st.Projectiles[:0]
	for _, p := range st.Projectiles {
		hit := false
		if p.FromPlayer {
			for _, m := range st.Monsters {
				if !m.Alive() || !Overlaps(p.X, p.Y, p.Size/2, m.X, m.Y, m.Size) {
					continue
				}
				hit = true
				if damage {
					m.Health -= p.Damage
					if !m.Alive() {
						killed++
					}
				}
				break
			}
		}
		if !hit {
			out = append(out, p)
		}
	}
	st.Projectiles = out
	return killed
}

// HitPlayer 敌方子弹命中本地玩家，返回伤害总和
func HitPlayer(st *ChamberState, x, y, radius float64) float64 {
	total := 0.0
	out := st.Projectiles[:0]
	for _, p := range st.Projectiles {
		if !p.FromPlayer && Overlaps(p.X, p.Y, p.Size/2, x, y, radius) {
			total += p.Damage
			continue
		}
		out = append(out, p)
	}
	st.Projectiles = out
	return total
}

// PruneDead 移除死亡怪物，返回移除数量
func (s *ChamberState) PruneDead() int {
	out := s.Monsters[:0]
	for _, m := range s.Monsters {
		if m != nil && m.Alive() {
			out = append(out, m)
			continue
		}
		if m != nil && m.Master != nil && m.Master.Minions > 0 {
			m.Master.Minions--
		}
	}
	n := len(s.Monsters) - len(out)
	clear(s.Monsters[len(out):])
	s.Monsters = out
	return n
}

// PlayerProjectiles 只保留玩家子弹
func PlayerProjectiles(list []Projectile) []Projectile {
	var out []Projectile
	for _, p := range list {
		if p.FromPlayer {
			out = append(out, p)
		}
	}
	return out
}
