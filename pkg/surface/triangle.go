package surface

import "github.com/chazu/ablation/pkg/geom"

// closestPointOnTriangle returns the point of triangle t nearest to p and
// its distance, by classifying p against the triangle's Voronoi regions
// (vertices, then edges, then the face).
func closestPointOnTriangle(p geom.Point3, t [3]geom.Point3) (geom.Point3, float64) {
	a, b, c := t[0], t[1], t[2]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a, p.Distance(a)
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b, p.Distance(b)
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		q := a.Add(ab.Scale(v))
		return q, p.Distance(q)
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c, p.Distance(c)
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		q := a.Add(ac.Scale(w))
		return q, p.Distance(q)
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		q := b.Add(c.Sub(b).Scale(w))
		return q, p.Distance(q)
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	q := a.Add(ab.Scale(v)).Add(ac.Scale(w))
	return q, p.Distance(q)
}
