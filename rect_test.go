package main

import "testing"

func TestRectUnionSelf(t *testing.T) {
	a := Rect{X: 3, Y: 4, W: 10, H: 20}
	if got := a.Union(a); got != a {
		t.Fatalf("a.Union(a) = %+v, want %+v", got, a)
	}
}

func TestRectIntersectSelf(t *testing.T) {
	a := Rect{X: 3, Y: 4, W: 10, H: 20}
	got, ok := a.Intersect(a)
	if !ok || got != a {
		t.Fatalf("a.Intersect(a) = %+v,%v want %+v,true", got, ok, a)
	}
}

func TestRectIntersectCommutative(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	b := Rect{X: 5, Y: 5, W: 10, H: 10}
	ab, okab := a.Intersect(b)
	ba, okba := b.Intersect(a)
	if okab != okba || ab != ba {
		t.Fatalf("intersect not commutative: %+v,%v vs %+v,%v", ab, okab, ba, okba)
	}
	if ab.W > a.W || ab.W > b.W || ab.H > a.H || ab.H > b.H {
		t.Fatalf("intersection dimensions exceed inputs: %+v", ab)
	}
}

func TestRectIntersectDisjoint(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 5, H: 5}
	b := Rect{X: 100, Y: 100, W: 5, H: 5}
	if _, ok := a.Intersect(b); ok {
		t.Fatalf("expected no intersection for disjoint rects")
	}
}

func TestRectClipToScreen(t *testing.T) {
	r := Rect{X: -10, Y: -10, W: 1000, H: 1000}
	clipped := r.ClipToScreen(640, 480)
	if clipped.X < 0 || clipped.Y < 0 || clipped.Right() > 640 || clipped.Bottom() > 480 {
		t.Fatalf("clip escaped screen bounds: %+v", clipped)
	}
}

func TestRectUnionEmptyIdentity(t *testing.T) {
	a := Rect{X: 1, Y: 2, W: 3, H: 4}
	empty := Rect{}
	if got := a.Union(empty); got != a {
		t.Fatalf("a.Union(empty) = %+v, want %+v", got, a)
	}
	if got := empty.Union(a); got != a {
		t.Fatalf("empty.Union(a) = %+v, want %+v", got, a)
	}
}
