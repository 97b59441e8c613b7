package api

import "socialfeed/internal/graphql"

const postFields = `
    id
    content
    author { id username }
    createdAt
    likesCount
    commentsCount
    sharesCount
    repostsCount
    quotesCount
    isRepost
    isLiked
    quotedPost { id content author { id username } createdAt }`

const profileFields = `
    bio
    dateOfBirth
    location
    profilePicture
    followersCount
    followingCount`

// Queries.
var (
	OpGetMe = graphql.Operation{Name: "GetMe", Kind: graphql.Query, Document: `
query GetMe {
  me { id username email dateJoined }
}`}

	OpGetMyProfile = graphql.Operation{Name: "GetMyProfile", Kind: graphql.Query, Document: `
query GetMyProfile {
  me {
    id username email dateJoined
    profile {` + profileFields + `
    }
  }
}`}

	OpGetPosts = graphql.Operation{Name: "GetPosts", Kind: graphql.Query, Document: `
query GetPosts($first: Int, $skip: Int, $search: String) {
  posts(first: $first, skip: $skip, search: $search) {` + postFields + `
    comments { id content author { id username } createdAt }
  }
}`}

	OpGetPost = graphql.Operation{Name: "GetPost", Kind: graphql.Query, Document: `
query GetPost($id: Int!) {
  post(id: $id) {` + postFields + `
    comments { id content author { id username } createdAt }
  }
}`}

	OpGetUserPosts = graphql.Operation{Name: "GetUserPosts", Kind: graphql.Query, Document: `
query GetUserPosts($userId: ID!) {
  userPosts(userId: $userId) {` + postFields + `
  }
}`}

	OpGetUserProfile = graphql.Operation{Name: "GetUserProfile", Kind: graphql.Query, Document: `
query GetUserProfile($username: String!) {
  user(username: $username) {
    id username email dateJoined
    profile {` + profileFields + `
    }
    isFollowing
  }
}`}

	OpGetUserFollowers = graphql.Operation{Name: "GetUserFollowers", Kind: graphql.Query, Document: `
query GetUserFollowers($userId: Int!) {
  followers(userId: $userId) {
    id username
    profile { profilePicture followersCount }
  }
}`}

	OpGetUserFollowing = graphql.Operation{Name: "GetUserFollowing", Kind: graphql.Query, Document: `
query GetUserFollowing($userId: Int!) {
  following(userId: $userId) {
    id username
    profile { profilePicture followingCount }
  }
}`}
)

// Mutations.
var (
	OpRegister = graphql.Operation{Name: "Register", Kind: graphql.Mutation, Document: `
mutation Register($username: String!, $email: String!, $password: String!) {
  register(username: $username, email: $email, password: $password) {
    user { id username email }
    token
    refreshToken
    success
    errors
  }
}`}

	OpLogin = graphql.Operation{Name: "Login", Kind: graphql.Mutation, Document: `
mutation Login($username: String!, $password: String!) {
  tokenAuth(username: $username, password: $password) {
    token
    refreshToken
    user { id username email }
  }
}`}

	OpRefreshToken = graphql.Operation{Name: "RefreshToken", Kind: graphql.Mutation, Document: `
mutation RefreshToken($refreshToken: String!) {
  refreshToken(refreshToken: $refreshToken) {
    token
    refreshToken
  }
}`}

	OpGoogleSignIn = graphql.Operation{Name: "GoogleSignIn", Kind: graphql.Mutation, Document: `
mutation GoogleSignIn($idToken: String!) {
  googleSignIn(idToken: $idToken) {
    token
    refreshToken
    user { id username email }
    success
    errors
  }
}`}

	OpRequestPasswordReset = graphql.Operation{Name: "RequestPasswordReset", Kind: graphql.Mutation, Document: `
mutation RequestPasswordReset($email: String!) {
  requestPasswordReset(email: $email) {
    success
    message
    errors
  }
}`}

	OpResetPassword = graphql.Operation{Name: "ResetPassword", Kind: graphql.Mutation, Document: `
mutation ResetPassword($token: String!, $password: String!) {
  resetPassword(token: $token, password: $password) {
    success
    message
    errors
  }
}`}

	OpCreatePost = graphql.Operation{Name: "CreatePost", Kind: graphql.Mutation, Document: `
mutation CreatePost($content: String!) {
  createPost(content: $content) {
    post {` + postFields + `
    }
    success
    errors
  }
}`}

	OpQuotePost = graphql.Operation{Name: "QuotePost", Kind: graphql.Mutation, Document: `
mutation QuotePost($postId: Int!, $content: String!) {
  quotePost(postId: $postId, content: $content) {
    post {` + postFields + `
    }
    success
    errors
  }
}`}

	OpRepostPost = graphql.Operation{Name: "RepostPost", Kind: graphql.Mutation, Document: `
mutation RepostPost($postId: Int!) {
  repostPost(postId: $postId) {
    post { id repostsCount }
    success
    errors
  }
}`}

	OpToggleLike = graphql.Operation{Name: "ToggleLike", Kind: graphql.Mutation, Document: `
mutation ToggleLike($postId: Int!) {
  toggleLike(postId: $postId) {
    post { id likesCount }
    liked
    success
    errors
  }
}`}

	OpSharePost = graphql.Operation{Name: "SharePost", Kind: graphql.Mutation, Document: `
mutation SharePost($postId: Int!) {
  sharePost(postId: $postId) {
    post { id sharesCount }
    success
    errors
  }
}`}

	OpCreateComment = graphql.Operation{Name: "CreateComment", Kind: graphql.Mutation, Document: `
mutation CreateComment($postId: Int!, $content: String!) {
  createComment(postId: $postId, content: $content) {
    comment { id content author { id username } createdAt }
    success
    errors
  }
}`}

	OpFollowUser = graphql.Operation{Name: "FollowUser", Kind: graphql.Mutation, Document: `
mutation FollowUser($userId: Int!) {
  followUser(userId: $userId) {
    success
    errors
    isFollowing
  }
}`}

	OpUnfollowUser = graphql.Operation{Name: "UnfollowUser", Kind: graphql.Mutation, Document: `
mutation UnfollowUser($userId: Int!) {
  unfollowUser(userId: $userId) {
    success
    errors
    isFollowing
  }
}`}

	OpUpdateProfile = graphql.Operation{Name: "UpdateProfile", Kind: graphql.Mutation, Document: `
mutation UpdateProfile($bio: String, $date_of_birth: Date, $location: String, $profile_picture: String) {
  updateProfile(bio: $bio, dateOfBirth: $date_of_birth, location: $location, profilePicture: $profile_picture) {
    success
    errors
    profile {` + profileFields + `
    }
  }
}`}
)

// Invalidations lists, per mutation, the queries whose cached results it
// evicts. A view whose query is missing here stays stale until the next poll
// or manual refresh. ToggleLike does not evict GetUserPosts, so a profile's
// post list keeps the old like count until it is reloaded.
var Invalidations = map[string][]string{
	OpCreatePost.Name:    {OpGetPosts.Name, OpGetUserPosts.Name},
	OpQuotePost.Name:     {OpGetPosts.Name, OpGetUserPosts.Name},
	OpRepostPost.Name:    {OpGetPosts.Name},
	OpToggleLike.Name:    {OpGetPosts.Name},
	OpSharePost.Name:     {OpGetPosts.Name},
	OpCreateComment.Name: {OpGetPosts.Name, OpGetPost.Name},
	OpFollowUser.Name:    {OpGetUserProfile.Name, OpGetUserFollowers.Name, OpGetUserFollowing.Name},
	OpUnfollowUser.Name:  {OpGetUserProfile.Name, OpGetUserFollowers.Name, OpGetUserFollowing.Name},
	OpUpdateProfile.Name: {OpGetMyProfile.Name, OpGetMe.Name, OpGetUserProfile.Name},

	OpRegister.Name:             nil,
	OpLogin.Name:                nil,
	OpRefreshToken.Name:         nil,
	OpGoogleSignIn.Name:         nil,
	OpRequestPasswordReset.Name: nil,
	OpResetPassword.Name:        nil,
}
