// Package bechdel models whether a movie passes the Bechdel test from its
// budget, runtime, release year, cast/crew gender ratio, director gender
// and genres.
//
// A run joins three CSV sources (Bechdel scores, a movie metadata dump and
// a gender-ratio table), filters low-budget titles, derives the predictor
// columns and holds out a seeded test partition. Seven model variants are
// tuned on the training rows:
//
//   - knn_regression: kNN regressor on the 0–3 score, k chosen by training RMSE
//   - knn_multiclass, knn_binary: kNN classifiers tuned by cross-validation
//   - gbm_multiclass, gbm_binary: gradient boosted trees
//   - multinomial, logistic: regularized linear classifiers
//
// Each tuned model is scored on the held-out rows overall and per director
// gender, and the results are written as console tables, CSV, XLSX and
// PNG plots.
//
// # Packages
//
//   - dataset: source loading, key normalization and the two inner joins
//   - features: budget filter, derived columns and the design matrix
//   - split: seeded train/test partition
//   - sklearn/...: estimators, cross-validation and grid search
//   - models: hyperparameter grids for each model family
//   - evaluation: confusion matrix, accuracy, sensitivity, specificity, AUC
//   - report: result tables, workbook, summaries and plots
//   - pipeline: configuration and the end-to-end run
//
// # Usage
//
//	bechdel run --config bechdel.yaml --out out --seed 1234
//
// Every config key can also be set from the environment with the BECHDEL_
// prefix, for example BECHDEL_SEED=42 or BECHDEL_INPUTS_RATIO=ratio.csv.
package bechdel
