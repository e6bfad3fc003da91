/*
Package bdtree grows elicitation decision trees for the cold start
of recommender systems.

An elicitation tree asks a new user to rate one item at every node and
follows the Like, Dislike or Unknown branch according to the answer,
so that after a few questions the user reaches a leaf that estimates
their ratings of every item. Trees are grown by a Builder out of the
ratings of existing users, choosing at each node the question that
best splits them according to a Criterion: the residual error of
their bias-corrected ratings or the quality of the rankings built for
them. Evaluate measures a grown tree on held-out users.
*/
package bdtree
