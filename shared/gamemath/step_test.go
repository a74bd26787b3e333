package gamemath

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestStepForwardTenTicks(t *testing.T) {
	cfg := DefaultStepConfig()
	pos := Vec3{}
	rot := IdentityQuat()
	dt := 1.0 / 60.0

	for i := 0; i < 10; i++ {
		pos, rot = Step(pos, rot, Vec3{Z: -1}, 0, dt, cfg)
	}

	if math.Abs(pos.X) > eps || math.Abs(pos.Y) > eps {
		t.Fatalf("forward movement leaked into other axes: %+v", pos)
	}
	if math.Abs(pos.Z-(-2.5)) > 1e-6 {
		t.Fatalf("expected z = -2.5 after 10 ticks, got %v", pos.Z)
	}
}

func TestStepIsDeterministic(t *testing.T) {
	cfg := DefaultStepConfig()
	dt := 1.0 / 60.0

	run := func() (Vec3, Quat) {
		pos := Vec3{X: 3, Z: 7}
		rot := QuatFromYaw(0.4)
		for i := 0; i < 200; i++ {
			move := Vec3{X: float64(i%3 - 1), Z: float64((i+1)%3 - 1)}
			pos, rot = Step(pos, rot, move, float64(i%5)-2, dt, cfg)
		}
		return pos, rot
	}

	p1, r1 := run()
	p2, r2 := run()
	if p1 != p2 || r1 != r2 {
		t.Fatalf("two identical runs diverged: %+v/%+v vs %+v/%+v", p1, r1, p2, r2)
	}
}

func TestStepZeroInputHoldsStill(t *testing.T) {
	pos, rot := Step(Vec3{X: 1, Y: 2, Z: 3}, IdentityQuat(), Vec3{}, 0, 1.0/60.0, DefaultStepConfig())
	if pos != (Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("position drifted with zero input: %+v", pos)
	}
	if rot != IdentityQuat() {
		t.Fatalf("rotation drifted with zero input: %+v", rot)
	}
}

func TestStepMovesAlongFacing(t *testing.T) {
	// Facing 90 degrees left, "forward" should move along -X.
	rot := QuatFromYaw(math.Pi / 2)
	pos, _ := Step(Vec3{}, rot, Vec3{Z: -1}, 0, 1, DefaultStepConfig())
	if math.Abs(pos.X-(-15)) > 1e-6 || math.Abs(pos.Z) > 1e-6 {
		t.Fatalf("expected movement along -X, got %+v", pos)
	}
}

func TestStepLookTurnsYawOnly(t *testing.T) {
	_, rot := Step(Vec3{}, IdentityQuat(), Vec3{}, 10, 1.0/60.0, DefaultStepConfig())
	if rot == IdentityQuat() {
		t.Fatal("look input did not rotate")
	}
	if rot.X != 0 || rot.Z != 0 {
		t.Fatalf("look rotation left the yaw axis: %+v", rot)
	}
	// Positive look X turns clockwise (negative yaw).
	if rot.Yaw() >= 0 {
		t.Fatalf("expected negative yaw for positive look input, got %v", rot.Yaw())
	}
}

func TestQuatRotateMatchesYaw(t *testing.T) {
	q := QuatFromYaw(math.Pi / 2)
	v := q.Rotate(Vec3{Z: -1})
	if math.Abs(v.X-(-1)) > 1e-9 || math.Abs(v.Z) > 1e-9 || math.Abs(v.Y) > 1e-9 {
		t.Fatalf("quarter yaw of -Z should be -X, got %+v", v)
	}
}

func TestNlerpEndpoints(t *testing.T) {
	a := QuatFromYaw(0.3)
	b := QuatFromYaw(1.1)
	if got := a.Nlerp(b, 0); got.AngleTo(a) > 1e-9 {
		t.Fatalf("nlerp at t=0 should return a, got %+v", got)
	}
	if got := a.Nlerp(b, 1); got.AngleTo(b) > 1e-9 {
		t.Fatalf("nlerp at t=1 should return b, got %+v", got)
	}
}

func TestNormalizedZeroVector(t *testing.T) {
	if got := (Vec3{}).Normalized(); got != (Vec3{}) {
		t.Fatalf("zero vector should normalize to zero, got %+v", got)
	}
}
