// Package nn is a small CPU neural-network toolkit built on gonum/mat.
//
// A Network is a sequence of layers operating on row-major batches: each row
// of the input matrix is one sample, flattened in height × width × channels
// order. Layers cache what they need during Forward and consume it in
// Backward, so a Network must not be used from several goroutines at once.
//
// The package provides the layers needed by the cnn, ann and fnn
// architectures (Conv2D, MaxPool2D, BatchNorm, Dropout, Flatten, Dense),
// softmax cross-entropy and the Adam optimizer.
package nn
