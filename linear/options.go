package linear

// Option configures a SoftmaxRegression.
type Option func(*SoftmaxRegression)

// WithC sets the inverse L2 regularization strength. Zero or negative
// disables the penalty.
func WithC(c float64) Option {
	return func(s *SoftmaxRegression) {
		s.C = c
	}
}

// WithFitIntercept sets whether to learn a per-class bias.
func WithFitIntercept(fit bool) Option {
	return func(s *SoftmaxRegression) {
		s.FitIntercept = fit
	}
}

// WithMaxIter sets the number of full-batch gradient steps.
func WithMaxIter(n int) Option {
	return func(s *SoftmaxRegression) {
		s.MaxIter = n
	}
}

// WithTol stops fitting once the largest gradient component falls below tol.
func WithTol(tol float64) Option {
	return func(s *SoftmaxRegression) {
		s.Tol = tol
	}
}

// WithLearningRate sets the base step, before the decay schedule and the
// scaling by the loss smoothness bound.
func WithLearningRate(lr float64) Option {
	return func(s *SoftmaxRegression) {
		s.LearningRate = lr
	}
}

// WithRandomState seeds the weight initialization.
func WithRandomState(seed int64) Option {
	return func(s *SoftmaxRegression) {
		s.RandomState = seed
	}
}
