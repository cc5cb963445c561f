package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"
	"gonum.org/v1/gonum/mat"

	"github.com/i474232898/area-weather-forecast/internal/weather"
)

const (
	weeklyPeriod = 7.0
	yearlyPeriod = 365.25

	// priorNoiseVariance converts prior scales into ridge weights on the
	// scaled series: weight = priorNoiseVariance / scale².
	priorNoiseVariance = 0.01
)

var epoch = civil.Date{Year: 1970, Month: time.January, Day: 1}

func dayIndex(d civil.Date) int {
	return d.DaysSince(epoch)
}

// design describes the regressors: k·t + m + Σ δ_j (t − s_j)_+ followed by
// weekly and yearly Fourier pairs.
type design struct {
	tStart       int
	span         float64
	changepoints []float64
	weeklyOrder  int
	yearlyOrder  int
}

func (d design) width() int {
	return 2 + len(d.changepoints) + 2*d.weeklyOrder + 2*d.yearlyOrder
}

// scaledTime maps a day index onto [0,1] over the observed span.
func (d design) scaledTime(day int) float64 {
	return float64(day-d.tStart) / d.span
}

func (d design) row(day int, dst []float64) {
	t := d.scaledTime(day)
	dst[0] = t
	dst[1] = 1
	i := 2
	for _, s := range d.changepoints {
		dst[i] = math.Max(0, t-s)
		i++
	}
	i = fourier(dst, i, float64(day), weeklyPeriod, d.weeklyOrder)
	fourier(dst, i, float64(day), yearlyPeriod, d.yearlyOrder)
}

func fourier(dst []float64, i int, day, period float64, order int) int {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * day / period
		dst[i] = math.Sin(x)
		dst[i+1] = math.Cos(x)
		i += 2
	}
	return i
}

func (d design) penalties(opts Options) []float64 {
	p := make([]float64, d.width())
	trend := priorNoiseVariance / (opts.TrendPriorScale * opts.TrendPriorScale)
	delta := priorNoiseVariance / (opts.ChangepointPriorScale * opts.ChangepointPriorScale)
	season := priorNoiseVariance / (opts.SeasonalityPriorScale * opts.SeasonalityPriorScale)

	// The offset m stays unpenalized so a level shift is never pushed into
	// the seasonal terms.
	p[0] = trend
	i := 2
	for range d.changepoints {
		p[i] = delta
		i++
	}
	for ; i < len(p); i++ {
		p[i] = season
	}
	return p
}

// model is a fitted additive decomposition on the scaled series.
type model struct {
	design
	beta   []float64
	yScale float64
	sigma  float64
	// rate and deltaScale drive the trend uncertainty: future slope changes
	// arrive at the historical changepoint rate with Laplace(0, deltaScale) size.
	rate       float64
	deltaScale float64
}

// fitModel minimizes Σ r_i² + Σ w_j β_j² over the observed points with a
// single Cholesky solve. days must be strictly ascending with at least two
// entries.
func fitModel(ctx context.Context, days []int, ys []float64, opts Options) (*model, error) {
	n := len(days)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d usable points, need at least 2", weather.ErrInsufficientData, n)
	}

	yScale := 0.0
	for _, y := range ys {
		yScale = math.Max(yScale, math.Abs(y))
	}
	if yScale == 0 {
		yScale = 1
	}

	d := design{
		tStart:      days[0],
		span:        float64(days[n-1] - days[0]),
		weeklyOrder: opts.WeeklyOrder,
	}
	if days[n-1]-days[0]+1 >= opts.YearlyMinDays {
		d.yearlyOrder = opts.YearlyOrder
	}
	d.changepoints = placeChangepoints(d, days, opts)

	p := d.width()
	a := make([]float64, p*p)
	b := make([]float64, p)
	row := make([]float64, p)
	for i, day := range days {
		d.row(day, row)
		y := ys[i] / yScale
		for j := 0; j < p; j++ {
			b[j] += row[j] * y
			for k := j; k < p; k++ {
				a[j*p+k] += row[j] * row[k]
			}
		}
	}
	for j, w := range d.penalties(opts) {
		a[j*p+j] += w
	}
	for j := 0; j < p; j++ {
		for k := 0; k < j; k++ {
			a[j*p+k] = a[k*p+j]
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrNumericalFailure, err)
	}

	normal := mat.NewSymDense(p, a)
	var chol mat.Cholesky
	if ok := chol.Factorize(normal); !ok {
		return nil, fmt.Errorf("%w: normal matrix is not positive definite", weather.ErrNumericalFailure)
	}

	rhs := mat.NewVecDense(p, b)
	beta := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(beta, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrNumericalFailure, err)
	}

	// The solve is closed form; reject it when the backward error says the
	// factorization lost too much precision.
	resid := mat.NewVecDense(p, nil)
	resid.MulVec(normal, beta)
	resid.SubVec(rhs, resid)
	backward := mat.Norm(resid, 2) / (mat.Norm(normal, 2)*mat.Norm(beta, 2) + mat.Norm(rhs, 2))
	if !(backward <= opts.Tolerance) {
		return nil, fmt.Errorf("%w: solve residual %g above tolerance %g", weather.ErrNumericalFailure, backward, opts.Tolerance)
	}

	m := &model{
		design: d,
		beta:   make([]float64, p),
		yScale: yScale,
		rate:   float64(len(d.changepoints)),
	}
	for j := range m.beta {
		m.beta[j] = beta.AtVec(j)
		if math.IsNaN(m.beta[j]) || math.IsInf(m.beta[j], 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient", weather.ErrNumericalFailure)
		}
	}

	var sse float64
	for i, day := range days {
		r := ys[i]/yScale - m.value(day, row)
		sse += r * r
	}
	m.sigma = math.Sqrt(sse / float64(n))

	if len(d.changepoints) > 0 {
		var sum float64
		for _, delta := range m.beta[2 : 2+len(d.changepoints)] {
			sum += math.Abs(delta)
		}
		m.deltaScale = sum / float64(len(d.changepoints))
	}
	return m, nil
}

// placeChangepoints spreads changepoints evenly over the first
// ChangepointRange of the observed points, never more than the history
// can support.
func placeChangepoints(d design, days []int, opts Options) []float64 {
	histSize := int(math.Floor(float64(len(days)) * opts.ChangepointRange))
	count := opts.Changepoints
	if count+1 > histSize {
		count = histSize - 1
	}
	if count <= 0 {
		return nil
	}
	cps := make([]float64, count)
	for j := 1; j <= count; j++ {
		idx := int(math.Round(float64(j) * float64(histSize-1) / float64(count)))
		cps[j-1] = d.scaledTime(days[idx])
	}
	return cps
}

// value returns the scaled fitted value for day. row is scratch space.
func (m *model) value(day int, row []float64) float64 {
	m.row(day, row)
	var v float64
	for j, x := range row {
		v += x * m.beta[j]
	}
	return v
}

// predict returns the unscaled prediction and interval half-width for day.
// The half-width grows with τ³ past the last observed day and is the
// residual spread alone in-sample.
func (m *model) predict(day int, z float64, row []float64) (float64, float64) {
	yhat := m.value(day, row) * m.yScale

	tau := m.scaledTime(day) - 1
	if tau < 0 {
		tau = 0
	}
	// Laplace(0, b) slope changes have variance 2b².
	variance := m.sigma*m.sigma + 2.0/3.0*m.rate*2*m.deltaScale*m.deltaScale*tau*tau*tau
	return yhat, z * math.Sqrt(variance) * m.yScale
}
